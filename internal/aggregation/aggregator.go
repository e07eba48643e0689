// Package aggregation reduces raw queue project records into one
// statistical summary per canonical developer.
//
// Every reduction used here (counts, sums, set union, min/max date, timeline
// day totals) is associative and commutative, so records may be split into
// shards, reduced independently and merged in any order with the same result.
package aggregation

import (
	"sort"
	"sync"
	"time"

	"reliability-platform/internal/models"
)

// DaysPerYear converts tenure in days to years
const DaysPerYear = 365.25

// Aggregate groups records by canonical developer and summarizes each group.
// asOf is the evaluation date used for tenure. Output is sorted by name.
func Aggregate(records []models.ProjectRecord, asOf time.Time) []models.DeveloperMetrics {
	return finalize(reduce(records), asOf)
}

// AggregateSharded is Aggregate with the grouping pass split across shards
// goroutines. The result is identical to Aggregate for any shard count.
func AggregateSharded(records []models.ProjectRecord, asOf time.Time, shards int) []models.DeveloperMetrics {
	if shards <= 1 || len(records) < shards {
		return Aggregate(records, asOf)
	}

	partials := make([]map[string]*accumulator, shards)
	size := (len(records) + shards - 1) / shards

	var wg sync.WaitGroup
	for i := 0; i < shards; i++ {
		start := i * size
		end := min(start+size, len(records))
		if start >= end {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			partials[i] = reduce(records[start:end])
		}()
	}
	wg.Wait()

	merged := make(map[string]*accumulator)
	for _, partial := range partials {
		for name, acc := range partial {
			if existing, ok := merged[name]; ok {
				existing.merge(acc)
				continue
			}
			merged[name] = acc
		}
	}

	return finalize(merged, asOf)
}

func reduce(records []models.ProjectRecord) map[string]*accumulator {
	groups := make(map[string]*accumulator)
	for i := range records {
		rec := &records[i]
		if !rec.Attributed() {
			continue
		}
		acc, ok := groups[rec.DeveloperCanonical]
		if !ok {
			acc = newAccumulator(rec.DeveloperCanonical)
			groups[rec.DeveloperCanonical] = acc
		}
		acc.add(rec)
	}
	return groups
}

func finalize(groups map[string]*accumulator, asOf time.Time) []models.DeveloperMetrics {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.DeveloperMetrics, 0, len(names))
	for _, name := range names {
		out = append(out, groups[name].metrics(asOf))
	}
	return out
}
