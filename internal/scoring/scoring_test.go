package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliability-platform/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func scenarioA() Input {
	return Input{
		Operational:     8,
		Withdrawn:       2,
		TotalProjects:   10,
		AvgTimelineDays: floatPtr(600),
		NumRegions:      3,
		NumFuelTypes:    2,
		ActiveProjects:  5,
		YearsSinceFirst: 10,
	}
}

func TestScore_ReferenceDeveloper(t *testing.T) {
	result := Score(scenarioA())
	card, ok := result.Scorecard()
	require.True(t, ok)

	b := card.Breakdown
	assert.Equal(t, 0.8, b.CompletionRate)
	assert.Equal(t, 80.0, b.CompletionRateScore)
	assert.Equal(t, 87.1, b.TimelineScore)
	assert.Equal(t, 45.2, b.VolumeScore)
	assert.Equal(t, 33.3, b.BreadthScore)
	assert.Equal(t, 25.0, b.DiversityScore)
	assert.Equal(t, 45.6, b.PipelineScore)
	assert.Equal(t, 50.0, b.DepthScore)
	assert.Equal(t, 61.1, card.Score)

	require.NotNil(t, b.AvgTimelineDays)
	assert.Equal(t, 600.0, *b.AvgTimelineDays)
	assert.Equal(t, 10, b.ProjectVolume)
	assert.Equal(t, 3, b.RegionalBreadth)
	assert.Equal(t, 2, b.TechDiversity)
	assert.Equal(t, 5, b.ActivePipeline)
	assert.Equal(t, 10.0, b.TrackRecordYears)
}

func TestScore_CompositeRoundsOnce(t *testing.T) {
	// rounded sub-scores (100, 76.2, 70.0, 11.1, 12.5, 35.3, 36.5) would sum
	// to 63.455; the unrounded sum is 63.448
	in := Input{
		Operational:     5,
		Withdrawn:       0,
		TotalProjects:   40,
		AvgTimelineDays: floatPtr(800),
		NumRegions:      1,
		NumFuelTypes:    1,
		ActiveProjects:  3,
		YearsSinceFirst: 7.3,
	}

	card, ok := Score(in).Scorecard()
	require.True(t, ok)
	assert.Equal(t, 63.4, card.Score)
	assert.Equal(t, 76.2, card.Breakdown.TimelineScore)
	assert.Equal(t, 35.3, card.Breakdown.PipelineScore)
}

func TestScore_QualificationGate(t *testing.T) {
	tests := []struct {
		name        string
		operational int
		withdrawn   int
		qualified   bool
	}{
		{"nothing resolved", 0, 0, false},
		{"two resolved", 1, 1, false},
		{"four resolved", 4, 0, false},
		{"four withdrawn", 0, 4, false},
		{"exactly five", 3, 2, true},
		{"five withdrawn", 0, 5, true},
		{"many resolved", 40, 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := scenarioA()
			in.Operational = tt.operational
			in.Withdrawn = tt.withdrawn

			result := Score(in)
			assert.Equal(t, tt.qualified, result.Qualified())

			_, ok := result.Scorecard()
			assert.Equal(t, tt.qualified, ok)
		})
	}
}

func TestScore_UnqualifiedIgnoresOtherFields(t *testing.T) {
	in := Input{
		Operational:     1,
		Withdrawn:       1,
		TotalProjects:   500,
		AvgTimelineDays: floatPtr(100),
		NumRegions:      20,
		NumFuelTypes:    20,
		ActiveProjects:  300,
		YearsSinceFirst: 40,
	}
	assert.False(t, Score(in).Qualified())
}

func TestScore_ZeroScoreIsStillQualified(t *testing.T) {
	in := Input{
		Operational:     0,
		Withdrawn:       5,
		TotalProjects:   0,
		AvgTimelineDays: floatPtr(5000),
	}

	card, ok := Score(in).Scorecard()
	require.True(t, ok)
	assert.Equal(t, 0.0, card.Score)
	assert.Equal(t, 0.0, card.Breakdown.CompletionRate)
}

func TestScore_ZeroInputsFallBack(t *testing.T) {
	in := Input{Operational: 5, Withdrawn: 0}

	card, ok := Score(in).Scorecard()
	require.True(t, ok)

	b := card.Breakdown
	assert.Equal(t, 0.0, b.VolumeScore)
	assert.Equal(t, 0.0, b.PipelineScore)
	assert.Equal(t, 0.0, b.DepthScore)
	assert.Equal(t, 0.0, b.BreadthScore)
	assert.Equal(t, 0.0, b.DiversityScore)
	assert.Equal(t, TimelineNeutral, b.TimelineScore)
	assert.Nil(t, b.AvgTimelineDays)
}

func TestTimelineScore(t *testing.T) {
	tests := []struct {
		name     string
		days     *float64
		expected float64
	}{
		{"undefined is neutral", nil, 50},
		{"zero is neutral", floatPtr(0), 50},
		{"negative is neutral", floatPtr(-20), 50},
		{"NaN is neutral", floatPtr(math.NaN()), 50},
		{"well under a year", floatPtr(30), 100},
		{"exactly one year", floatPtr(365), 100},
		{"one day past a year", floatPtr(366), 99.9},
		{"midpoint", floatPtr(1277.5), 50},
		{"one day short of six years", floatPtr(2189), 0.1},
		{"exactly six years", floatPtr(2190), 0},
		{"beyond six years", floatPtr(4000), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, round1(TimelineScore(tt.days)))
		})
	}
}

func TestVolumeScore(t *testing.T) {
	assert.Equal(t, 0.0, VolumeScore(0))
	assert.Equal(t, 0.0, VolumeScore(-3))
	assert.Equal(t, 100.0, VolumeScore(VolumeCap))
	assert.Equal(t, 100.0, VolumeScore(1000))

	prev := VolumeScore(0)
	for n := 1; n <= 400; n++ {
		cur := VolumeScore(n)
		assert.GreaterOrEqual(t, cur, prev, "volume score decreased at %d", n)
		assert.LessOrEqual(t, cur, 100.0)
		prev = cur
	}
}

func TestPipelineScore(t *testing.T) {
	assert.Equal(t, 0.0, PipelineScore(0))
	assert.Equal(t, 0.0, PipelineScore(-1))
	assert.Equal(t, 100.0, PipelineScore(PipelineCap))
	assert.Equal(t, 100.0, PipelineScore(75))

	prev := PipelineScore(0)
	for n := 1; n <= 120; n++ {
		cur := PipelineScore(n)
		assert.GreaterOrEqual(t, cur, prev, "pipeline score decreased at %d", n)
		assert.LessOrEqual(t, cur, 100.0)
		prev = cur
	}
}

func TestBreadthAndDiversityCaps(t *testing.T) {
	assert.Equal(t, 100.0, BreadthScore(9))
	assert.Equal(t, 100.0, BreadthScore(18))
	assert.Equal(t, 33.3, round1(BreadthScore(3)))
	assert.Equal(t, 0.0, BreadthScore(0))

	assert.Equal(t, 100.0, DiversityScore(8))
	assert.Equal(t, 100.0, DiversityScore(12))
	assert.Equal(t, 12.5, DiversityScore(1))
}

func TestDepthScore(t *testing.T) {
	assert.Equal(t, 0.0, DepthScore(0))
	assert.Equal(t, 0.0, DepthScore(-2.5))
	assert.Equal(t, 50.0, DepthScore(10))
	assert.Equal(t, 100.0, DepthScore(20))
	assert.Equal(t, 100.0, DepthScore(35))
}

func TestCompletionScoreMonotonic(t *testing.T) {
	for withdrawn := 0; withdrawn <= 20; withdrawn++ {
		prev := -1.0
		for operational := 0; operational <= 20; operational++ {
			cur := CompletionScore(operational, withdrawn)
			assert.GreaterOrEqual(t, cur, prev)
			prev = cur
		}
	}

	for operational := 0; operational <= 20; operational++ {
		prev := 101.0
		for withdrawn := 0; withdrawn <= 20; withdrawn++ {
			cur := CompletionScore(operational, withdrawn)
			assert.LessOrEqual(t, cur, prev)
			prev = cur
		}
	}
}

func TestWeights(t *testing.T) {
	assert.Equal(t, 1.0, DefaultWeights.Sum())
}

func TestScore_CompositeMatchesWeightedSum(t *testing.T) {
	w := DefaultWeights
	for op := 0; op <= 12; op += 3 {
		for wd := 0; wd <= 12; wd += 4 {
			for _, days := range []*float64{nil, floatPtr(200), floatPtr(900), floatPtr(3000)} {
				in := Input{
					Operational:     op,
					Withdrawn:       wd,
					TotalProjects:   op + wd + 7,
					AvgTimelineDays: days,
					NumRegions:      op % 10,
					NumFuelTypes:    wd % 9,
					ActiveProjects:  op * 5,
					YearsSinceFirst: float64(wd) * 2.5,
				}

				card, ok := Score(in).Scorecard()
				if op+wd < MinResolved {
					assert.False(t, ok)
					continue
				}
				require.True(t, ok)

				b := card.Breakdown
				sum := w.Completion*CompletionScore(in.Operational, in.Withdrawn) +
					w.Timeline*TimelineScore(in.AvgTimelineDays) +
					w.Volume*VolumeScore(in.TotalProjects) +
					w.Breadth*BreadthScore(in.NumRegions) +
					w.Diversity*DiversityScore(in.NumFuelTypes) +
					w.Pipeline*PipelineScore(in.ActiveProjects) +
					w.Depth*DepthScore(in.YearsSinceFirst)

				assert.Equal(t, round1(clamp(sum)), card.Score)
				assert.GreaterOrEqual(t, card.Score, 0.0)
				assert.LessOrEqual(t, card.Score, 100.0)
				for _, sub := range []float64{b.CompletionRateScore, b.TimelineScore, b.VolumeScore, b.BreadthScore, b.DiversityScore, b.PipelineScore, b.DepthScore} {
					assert.GreaterOrEqual(t, sub, 0.0)
					assert.LessOrEqual(t, sub, 100.0)
				}
			}
		}
	}
}

func TestScore_Idempotent(t *testing.T) {
	first, _ := Score(scenarioA()).Scorecard()
	second, _ := Score(scenarioA()).Scorecard()
	assert.Equal(t, first, second)
}

func TestRounding_HalvesAwayFromZero(t *testing.T) {
	assert.Equal(t, 0.3, round1(0.25))
	assert.Equal(t, 2.3, round1(2.25))
	assert.Equal(t, 0.6667, models.RoundTo(2.0/3.0, 4))
	assert.Equal(t, 33.3, round1(100.0/3.0))
}

func TestScoreBatch_DeterministicAcrossWorkers(t *testing.T) {
	metrics := make([]models.DeveloperMetrics, 0, 60)
	for i := 0; i < 60; i++ {
		days := float64(300 + i*40)
		metrics = append(metrics, models.DeveloperMetrics{
			Name:            string(rune('A'+i%26)) + string(rune('a'+i/26)),
			TotalProjects:   i + 1,
			Operational:     i % 7,
			Withdrawn:       i % 5,
			Active:          i % 11,
			NumRegions:      i % 10,
			NumFuelTypes:    i % 9,
			AvgTimelineDays: &days,
			YearsSinceFirst: float64(i) / 3,
		})
	}

	single := ScoreBatch(metrics, 1)
	for _, workers := range []int{2, 4, 16, 0} {
		assert.Equal(t, single, ScoreBatch(metrics, workers), "workers=%d", workers)
	}

	records := Records(metrics, single)
	require.Len(t, records, len(metrics))
	for i, rec := range records {
		assert.Equal(t, single[i].Qualified(), rec.Scored())
		assert.Equal(t, metrics[i].Name, rec.Name)
	}
}

func TestDistribution(t *testing.T) {
	dist := Distribution([]float64{0, 19.9, 20, 39.9, 40, 59.9, 60, 79.9, 80, 100})
	for _, b := range Buckets {
		assert.Equal(t, 2, dist[b], b)
	}

	empty := Distribution(nil)
	assert.Len(t, empty, len(Buckets))
	for _, b := range Buckets {
		assert.Zero(t, empty[b])
	}
}
