package models

import (
	"strconv"
	"strings"
	"time"
)

// Status is a project's lifecycle status as standardized by the queue data upstream
type Status string

// Known lifecycle statuses. Matching is exact and case-sensitive; any other
// value only counts toward a developer's total.
const (
	StatusOperational       Status = "Operational"
	StatusWithdrawn         Status = "Withdrawn"
	StatusActive            Status = "Active"
	StatusUnderConstruction Status = "Under Construction"
	StatusSuspended         Status = "Suspended"
)

// ProjectRecord is one interconnection queue entry
// Dates are kept as delivered upstream; the aggregator parses them and
// tolerates anything it cannot read.
type ProjectRecord struct {
	QueueID            string   `json:"queue_id" db:"queue_id"`
	Region             string   `json:"region" db:"region"`
	Name               string   `json:"name" db:"name"`
	Developer          string   `json:"developer" db:"developer"`
	DeveloperCanonical string   `json:"developer_canonical" db:"developer_canonical"`
	ParentCompany      string   `json:"parent_company" db:"parent_company"`
	CapacityMW         *float64 `json:"capacity_mw" db:"capacity_mw"`
	FuelType           string   `json:"fuel_type" db:"fuel_type"`
	Status             Status   `json:"status" db:"status"`
	State              string   `json:"state" db:"state"`
	County             string   `json:"county" db:"county"`
	POI                string   `json:"poi" db:"poi"`
	QueueDate          string   `json:"queue_date" db:"queue_date"`
	COD                string   `json:"cod" db:"cod"`
}

// Attributed reports whether the record has a canonical developer identity.
// Unattributed records are excluded from aggregation; any non-empty value,
// whitespace included, is an identity.
func (p *ProjectRecord) Attributed() bool {
	return p.DeveloperCanonical != ""
}

// Validate reports the first data-quality problem in the record. None of them
// make the record unusable: it is still loaded and aggregated, with Sanitize
// applied first.
func (p *ProjectRecord) Validate() error {
	if strings.TrimSpace(p.QueueID) == "" {
		return &ValidationError{Field: "queue_id", Value: p.QueueID, Message: "queue_id is required"}
	}
	if strings.TrimSpace(p.Region) == "" {
		return &ValidationError{Field: "region", Value: p.Region, Message: "region is required"}
	}
	if p.CapacityMW != nil && *p.CapacityMW < 0 {
		return &ValidationError{
			Field:   "capacity_mw",
			Value:   strconv.FormatFloat(*p.CapacityMW, 'f', -1, 64),
			Message: "capacity_mw cannot be negative",
		}
	}
	return nil
}

// Sanitize clears a negative capacity so it counts as absent. It reports
// whether anything changed.
func (p *ProjectRecord) Sanitize() bool {
	if p.CapacityMW != nil && *p.CapacityMW < 0 {
		p.CapacityMW = nil
		return true
	}
	return false
}

// ProjectView is the API representation of a project
type ProjectView struct {
	QueueID    string   `json:"queue_id"`
	Region     string   `json:"region"`
	Name       string   `json:"name"`
	CapacityMW *float64 `json:"capacity_mw"`
	FuelType   string   `json:"fuel_type"`
	Status     Status   `json:"status"`
	State      string   `json:"state"`
	County     string   `json:"county"`
	POI        string   `json:"poi"`
	QueueDate  string   `json:"queue_date"`
	COD        string   `json:"cod"`
}

// View drops the attribution columns that are implied by the lookup
func (p *ProjectRecord) View() ProjectView {
	return ProjectView{
		QueueID:    p.QueueID,
		Region:     p.Region,
		Name:       p.Name,
		CapacityMW: p.CapacityMW,
		FuelType:   p.FuelType,
		Status:     p.Status,
		State:      p.State,
		County:     p.County,
		POI:        p.POI,
		QueueDate:  p.QueueDate,
		COD:        p.COD,
	}
}

// dateLayouts are tried in order; time-of-day is discarded
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDate parses a queue or COD date to a UTC calendar day.
// The second return value is false for empty or unparseable input.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Day(t), true
		}
	}

	return time.Time{}, false
}

// Day truncates t to midnight UTC of its calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of calendar days from start to end
func DaysBetween(start, end time.Time) int64 {
	return int64(Day(end).Sub(Day(start)).Hours() / 24)
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
