package models

import (
	"math"
	"sort"
	"time"
)

// StringSet is a sorted, duplicate-free list of strings
type StringSet []string

// NewStringSet builds a set from values. The empty string is a valid member;
// callers that exclude it filter before inserting.
func NewStringSet(values ...string) StringSet {
	set := make(StringSet, 0, len(values))
	for _, v := range values {
		set = set.Insert(v)
	}
	return set
}

// Insert adds v in sorted position unless it is already present
func (s StringSet) Insert(v string) StringSet {
	i := sort.SearchStrings(s, v)
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// Union returns a new set holding the members of s and other
func (s StringSet) Union(other StringSet) StringSet {
	merged := make(StringSet, 0, len(s)+len(other))
	merged = append(merged, s...)
	for _, v := range other {
		merged = merged.Insert(v)
	}
	return merged
}

// Contains reports whether v is a member
func (s StringSet) Contains(v string) bool {
	i := sort.SearchStrings(s, v)
	return i < len(s) && s[i] == v
}

// Date is a calendar day that encodes as YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate wraps t truncated to its UTC day
func NewDate(t time.Time) *Date {
	return &Date{Time: Day(t)}
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MarshalJSON encodes the date as a YYYY-MM-DD string
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	t, ok := ParseDate(s)
	if !ok {
		return &ValidationError{Field: "date", Value: s, Message: "invalid date format, expected YYYY-MM-DD"}
	}
	d.Time = t
	return nil
}

// DeveloperMetrics is the statistical summary of one canonical developer's
// projects. It is produced once per batch run and never modified afterwards.
type DeveloperMetrics struct {
	Name          string `json:"name"`
	ParentCompany string `json:"parent_company,omitempty"`

	TotalProjects     int `json:"total_projects"`
	Operational       int `json:"operational"`
	Withdrawn         int `json:"withdrawn"`
	Active            int `json:"active"`
	UnderConstruction int `json:"under_construction"`
	Suspended         int `json:"suspended"`

	Regions      StringSet `json:"regions"`
	NumRegions   int       `json:"num_regions"`
	FuelTypes    StringSet `json:"fuel_types"`
	NumFuelTypes int       `json:"num_fuel_types"`
	States       StringSet `json:"states"`

	TotalCapacityMW       float64 `json:"total_capacity_mw"`
	OperationalCapacityMW float64 `json:"operational_capacity_mw"`
	AvgCapacityMW         float64 `json:"avg_capacity_mw"`

	FirstProjectDate  *Date `json:"first_project_date"`
	LatestProjectDate *Date `json:"latest_project_date"`

	// AvgTimelineDays is nil when no operational project has a usable
	// queue-date/COD pair
	AvgTimelineDays *float64 `json:"avg_timeline_days"`
	YearsSinceFirst float64  `json:"years_since_first"`
}

// Resolved is the number of projects with a known outcome
func (m *DeveloperMetrics) Resolved() int {
	return m.Operational + m.Withdrawn
}

// CompletionRatio returns operational / resolved rounded to four decimals.
// It is undefined when nothing has resolved.
func (m *DeveloperMetrics) CompletionRatio() (float64, bool) {
	resolved := m.Resolved()
	if resolved <= 0 {
		return 0, false
	}
	return RoundTo(float64(m.Operational)/float64(resolved), 4), true
}

// ScoreBreakdown pairs every sub-score with the raw metric it derives from
type ScoreBreakdown struct {
	CompletionRate      float64  `json:"completion_rate"`
	CompletionRateScore float64  `json:"completion_rate_score"`
	AvgTimelineDays     *float64 `json:"avg_timeline_days"`
	TimelineScore       float64  `json:"timeline_score"`
	ProjectVolume       int      `json:"project_volume"`
	VolumeScore         float64  `json:"volume_score"`
	RegionalBreadth     int      `json:"regional_breadth"`
	BreadthScore        float64  `json:"breadth_score"`
	TechDiversity       int      `json:"tech_diversity"`
	DiversityScore      float64  `json:"diversity_score"`
	ActivePipeline      int      `json:"active_pipeline"`
	PipelineScore       float64  `json:"pipeline_score"`
	TrackRecordYears    float64  `json:"track_record_years"`
	DepthScore          float64  `json:"depth_score"`
}

// Scorecard is the output for a qualified developer
type Scorecard struct {
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"score_breakdown"`
}

// DeveloperRecord is the persisted and served form of a developer: the
// metrics plus, for qualified developers only, the score and breakdown.
type DeveloperRecord struct {
	DeveloperMetrics
	CompletionRate *float64        `json:"completion_rate"`
	Score          *float64        `json:"score"`
	ScoreBreakdown *ScoreBreakdown `json:"score_breakdown"`
	RunID          string          `json:"-"`
}

// NewDeveloperRecord combines metrics with an optional scorecard
func NewDeveloperRecord(m DeveloperMetrics, card *Scorecard) DeveloperRecord {
	record := DeveloperRecord{DeveloperMetrics: m}
	if rate, ok := m.CompletionRatio(); ok {
		record.CompletionRate = &rate
	}
	if card != nil {
		score := card.Score
		breakdown := card.Breakdown
		record.Score = &score
		record.ScoreBreakdown = &breakdown
	}
	return record
}

// Scored reports whether the developer passed the qualification gate
func (r *DeveloperRecord) Scored() bool {
	return r.Score != nil
}

// RoundTo rounds v to the given number of decimal places, halves away from zero
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
