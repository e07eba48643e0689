// Package scoring maps a developer's aggregated metrics to a 0-100
// reliability score with a seven-part breakdown.
//
// Composite = Σ weight × sub-score, weights:
//
//	completion 0.30  operational / (operational + withdrawn)
//	timeline   0.20  average queue-to-COD days, lower is better
//	volume     0.15  total projects, log scaled
//	breadth    0.10  distinct regions
//	diversity  0.10  distinct fuel types
//	pipeline   0.10  active projects, log scaled
//	depth      0.05  years since first queue entry
//
// Developers with fewer than MinResolved resolved projects are unqualified
// and receive no score at all.
//
// The composite is the weighted sum of the unrounded sub-scores, clamped and
// then rounded once. Rounding (math.Round, halves away from zero) happens only
// on output: the composite and sub-scores to one decimal place, the completion
// rate to four.
package scoring

import (
	"math"

	"reliability-platform/internal/models"
)

// MinResolved is the qualification threshold on operational + withdrawn
const MinResolved = 5

// Benchmarks for the normalization curves
const (
	TimelineExcellentDays = 365
	TimelinePoorDays      = 365 * 6
	TimelineNeutral       = 50.0
	VolumeCap             = 200
	RegionsMax            = 9
	FuelTypesMax          = 8
	PipelineCap           = 50
	DepthMaxYears         = 20
)

// Weights is the relative importance of each sub-score
type Weights struct {
	Completion float64
	Timeline   float64
	Volume     float64
	Breadth    float64
	Diversity  float64
	Pipeline   float64
	Depth      float64
}

// DefaultWeights are the fixed production weights
var DefaultWeights = Weights{
	Completion: 0.30,
	Timeline:   0.20,
	Volume:     0.15,
	Breadth:    0.10,
	Diversity:  0.10,
	Pipeline:   0.10,
	Depth:      0.05,
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.Completion + w.Timeline + w.Volume + w.Breadth + w.Diversity + w.Pipeline + w.Depth
}

// Input is the subset of DeveloperMetrics the engine reads
type Input struct {
	Operational     int
	Withdrawn       int
	TotalProjects   int
	AvgTimelineDays *float64
	NumRegions      int
	NumFuelTypes    int
	ActiveProjects  int
	YearsSinceFirst float64
}

// InputFrom extracts the scoring input from aggregated metrics
func InputFrom(m *models.DeveloperMetrics) Input {
	return Input{
		Operational:     m.Operational,
		Withdrawn:       m.Withdrawn,
		TotalProjects:   m.TotalProjects,
		AvgTimelineDays: m.AvgTimelineDays,
		NumRegions:      m.NumRegions,
		NumFuelTypes:    m.NumFuelTypes,
		ActiveProjects:  m.Active,
		YearsSinceFirst: m.YearsSinceFirst,
	}
}

// Result is either qualified, carrying a scorecard, or unqualified.
// The zero value is unqualified.
type Result struct {
	card *models.Scorecard
}

// Qualified reports whether the developer passed the gate
func (r Result) Qualified() bool {
	return r.card != nil
}

// Scorecard returns the score and breakdown of a qualified result
func (r Result) Scorecard() (models.Scorecard, bool) {
	if r.card == nil {
		return models.Scorecard{}, false
	}
	return *r.card, true
}

// Score computes the reliability score for one developer
func Score(in Input) Result {
	resolved := in.Operational + in.Withdrawn
	if resolved < MinResolved {
		return Result{}
	}

	w := DefaultWeights
	completion := CompletionScore(in.Operational, in.Withdrawn)
	timeline := TimelineScore(in.AvgTimelineDays)
	volume := VolumeScore(in.TotalProjects)
	breadth := BreadthScore(in.NumRegions)
	diversity := DiversityScore(in.NumFuelTypes)
	pipeline := PipelineScore(in.ActiveProjects)
	depth := DepthScore(in.YearsSinceFirst)

	composite := w.Completion*completion +
		w.Timeline*timeline +
		w.Volume*volume +
		w.Breadth*breadth +
		w.Diversity*diversity +
		w.Pipeline*pipeline +
		w.Depth*depth

	var avgDays *float64
	if in.AvgTimelineDays != nil && *in.AvgTimelineDays > 0 {
		v := round1(*in.AvgTimelineDays)
		avgDays = &v
	}

	return Result{card: &models.Scorecard{
		Score: round1(clamp(composite)),
		Breakdown: models.ScoreBreakdown{
			CompletionRate:      models.RoundTo(float64(in.Operational)/float64(resolved), 4),
			CompletionRateScore: round1(completion),
			AvgTimelineDays:     avgDays,
			TimelineScore:       round1(timeline),
			ProjectVolume:       in.TotalProjects,
			VolumeScore:         round1(volume),
			RegionalBreadth:     in.NumRegions,
			BreadthScore:        round1(breadth),
			TechDiversity:       in.NumFuelTypes,
			DiversityScore:      round1(diversity),
			ActivePipeline:      in.ActiveProjects,
			PipelineScore:       round1(pipeline),
			TrackRecordYears:    round1(in.YearsSinceFirst),
			DepthScore:          round1(depth),
		},
	}}
}

// CompletionScore is the share of resolved projects that reached operation
func CompletionScore(operational, withdrawn int) float64 {
	resolved := operational + withdrawn
	if resolved <= 0 || operational <= 0 {
		return 0
	}
	return clamp(float64(operational) / float64(resolved) * 100)
}

// TimelineScore is 100 at or below one year, 0 at or beyond six, linear
// between. Missing or non-positive averages score neutral.
func TimelineScore(avgDays *float64) float64 {
	if avgDays == nil || math.IsNaN(*avgDays) || *avgDays <= 0 {
		return TimelineNeutral
	}
	days := *avgDays
	if days <= TimelineExcellentDays {
		return 100
	}
	if days >= TimelinePoorDays {
		return 0
	}
	return 100 * (1 - (days-TimelineExcellentDays)/(TimelinePoorDays-TimelineExcellentDays))
}

// VolumeScore grows with ln(1+n), reaching 100 at VolumeCap projects
func VolumeScore(total int) float64 {
	return logScore(total, VolumeCap)
}

// BreadthScore is linear in distinct regions up to RegionsMax
func BreadthScore(regions int) float64 {
	return linearScore(float64(regions), RegionsMax)
}

// DiversityScore is linear in distinct fuel types up to FuelTypesMax
func DiversityScore(fuelTypes int) float64 {
	return linearScore(float64(fuelTypes), FuelTypesMax)
}

// PipelineScore grows with ln(1+n), reaching 100 at PipelineCap active projects
func PipelineScore(active int) float64 {
	return logScore(active, PipelineCap)
}

// DepthScore is linear in years of track record up to DepthMaxYears
func DepthScore(years float64) float64 {
	if math.IsNaN(years) {
		return 0
	}
	return linearScore(years, DepthMaxYears)
}

func logScore(n, limit int) float64 {
	if n <= 0 {
		return 0
	}
	return clamp(math.Log1p(float64(n)) / math.Log1p(float64(limit)) * 100)
}

func linearScore(v, limit float64) float64 {
	if v <= 0 {
		return 0
	}
	return clamp(v / limit * 100)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 {
	return models.RoundTo(v, 1)
}
