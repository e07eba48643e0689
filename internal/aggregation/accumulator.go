package aggregation

import (
	"sort"
	"time"

	"reliability-platform/internal/models"
)

// accumulator holds the mergeable partial state for one developer
type accumulator struct {
	name          string
	parentCompany string

	total             int
	operational       int
	withdrawn         int
	active            int
	underConstruction int
	suspended         int

	// region is opaque, so the empty region is a member like any other;
	// empty fuel types and states are left out
	regions   models.StringSet
	fuelTypes models.StringSet
	states    models.StringSet

	// capacities are summed at the end in sorted order so float totals do not
	// depend on how records were sharded
	capacities            []float64
	operationalCapacities []float64

	hasQueueDate bool
	firstQueue   time.Time
	latestQueue  time.Time

	timelineDays    int64
	timelineSamples int
}

func newAccumulator(name string) *accumulator {
	return &accumulator{
		name:      name,
		regions:   models.StringSet{},
		fuelTypes: models.StringSet{},
		states:    models.StringSet{},
	}
}

func (a *accumulator) add(p *models.ProjectRecord) {
	a.total++

	switch p.Status {
	case models.StatusOperational:
		a.operational++
	case models.StatusWithdrawn:
		a.withdrawn++
	case models.StatusActive:
		a.active++
	case models.StatusUnderConstruction:
		a.underConstruction++
	case models.StatusSuspended:
		a.suspended++
	}

	if p.ParentCompany > a.parentCompany {
		a.parentCompany = p.ParentCompany
	}
	a.regions = a.regions.Insert(p.Region)
	if p.FuelType != "" {
		a.fuelTypes = a.fuelTypes.Insert(p.FuelType)
	}
	if p.State != "" {
		a.states = a.states.Insert(p.State)
	}

	if p.CapacityMW != nil {
		a.capacities = append(a.capacities, *p.CapacityMW)
		if p.Status == models.StatusOperational {
			a.operationalCapacities = append(a.operationalCapacities, *p.CapacityMW)
		}
	}

	queued, queuedOK := models.ParseDate(p.QueueDate)
	if queuedOK {
		a.observeQueueDate(queued, queued)
	}

	if p.Status != models.StatusOperational || !queuedOK {
		return
	}
	cod, ok := models.ParseDate(p.COD)
	if !ok || !cod.After(queued) {
		return
	}
	a.timelineDays += models.DaysBetween(queued, cod)
	a.timelineSamples++
}

func (a *accumulator) observeQueueDate(first, latest time.Time) {
	if !a.hasQueueDate {
		a.hasQueueDate = true
		a.firstQueue = first
		a.latestQueue = latest
		return
	}
	if first.Before(a.firstQueue) {
		a.firstQueue = first
	}
	if latest.After(a.latestQueue) {
		a.latestQueue = latest
	}
}

// merge folds other into a; both must describe the same developer
func (a *accumulator) merge(other *accumulator) {
	a.total += other.total
	a.operational += other.operational
	a.withdrawn += other.withdrawn
	a.active += other.active
	a.underConstruction += other.underConstruction
	a.suspended += other.suspended

	if other.parentCompany > a.parentCompany {
		a.parentCompany = other.parentCompany
	}
	a.regions = a.regions.Union(other.regions)
	a.fuelTypes = a.fuelTypes.Union(other.fuelTypes)
	a.states = a.states.Union(other.states)

	a.capacities = append(a.capacities, other.capacities...)
	a.operationalCapacities = append(a.operationalCapacities, other.operationalCapacities...)

	if other.hasQueueDate {
		a.observeQueueDate(other.firstQueue, other.latestQueue)
	}

	a.timelineDays += other.timelineDays
	a.timelineSamples += other.timelineSamples
}

func (a *accumulator) metrics(asOf time.Time) models.DeveloperMetrics {
	m := models.DeveloperMetrics{
		Name:              a.name,
		ParentCompany:     a.parentCompany,
		TotalProjects:     a.total,
		Operational:       a.operational,
		Withdrawn:         a.withdrawn,
		Active:            a.active,
		UnderConstruction: a.underConstruction,
		Suspended:         a.suspended,
		Regions:           a.regions,
		FuelTypes:         a.fuelTypes,
		States:            a.states,
	}
	m.NumRegions = len(m.Regions)
	m.NumFuelTypes = len(m.FuelTypes)

	m.TotalCapacityMW = sortedSum(a.capacities)
	m.OperationalCapacityMW = sortedSum(a.operationalCapacities)
	if n := len(a.capacities); n > 0 {
		m.AvgCapacityMW = models.RoundTo(m.TotalCapacityMW/float64(n), 2)
	}

	if a.hasQueueDate {
		m.FirstProjectDate = models.NewDate(a.firstQueue)
		m.LatestProjectDate = models.NewDate(a.latestQueue)
		m.YearsSinceFirst = float64(models.DaysBetween(a.firstQueue, asOf)) / DaysPerYear
	}

	if a.timelineSamples > 0 {
		avg := float64(a.timelineDays) / float64(a.timelineSamples)
		m.AvgTimelineDays = &avg
	}

	return m
}

func sortedSum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	total := 0.0
	for _, v := range sorted {
		total += v
	}
	return total
}
