package scoring

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"reliability-platform/internal/models"
)

// ScoreBatch scores every developer using up to workers goroutines.
// results[i] always belongs to metrics[i], so output order does not depend
// on scheduling.
func ScoreBatch(metrics []models.DeveloperMetrics, workers int) []Result {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(metrics))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range metrics {
		g.Go(func() error {
			results[i] = Score(InputFrom(&metrics[i]))
			return nil
		})
	}
	// Score cannot fail; errgroup is here for SetLimit and Wait is always nil
	_ = g.Wait()

	return results
}

// Records pairs metrics with their results in the persisted form
func Records(metrics []models.DeveloperMetrics, results []Result) []models.DeveloperRecord {
	records := make([]models.DeveloperRecord, len(metrics))
	for i := range metrics {
		var card *models.Scorecard
		if c, ok := results[i].Scorecard(); ok {
			card = &c
		}
		records[i] = models.NewDeveloperRecord(metrics[i], card)
	}
	return records
}
