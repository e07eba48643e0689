package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/montanaflynn/stats"

	"reliability-platform/internal/aggregation"
	"reliability-platform/internal/models"
	"reliability-platform/internal/repository"
	"reliability-platform/internal/scoring"
	"reliability-platform/internal/services"
	"reliability-platform/pkg/database"
	"reliability-platform/pkg/logging"
)

// preview scores a queue database in memory and prints the leaders, without
// touching PostgreSQL
func main() {
	sourcePath := flag.String("source", "queue.db", "Path to the upstream interconnection queue SQLite database")
	asOfFlag := flag.String("as-of", "", "Evaluation date (YYYY-MM-DD, default today UTC)")
	top := flag.Int("top", 20, "Number of developers to print")
	flag.Parse()

	asOf, err := services.ParseAsOf(*asOfFlag, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -as-of: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewStructuredLogger("reliability-preview", "1.0.0", logging.WarnLevel)
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, *sourcePath)
	if err != nil {
		logger.Fatal(ctx, "[PREVIEW_ERROR] Failed to open source database", logging.Fields{"source": *sourcePath}, err)
	}
	defer db.Close()

	var projects []models.ProjectRecord
	seen := make(map[[2]string]struct{})
	rows, unattributed, flagged, duplicates := 0, 0, 0, 0
	err = repository.NewSQLiteSource(db).ReadProjects(ctx, func(p models.ProjectRecord) error {
		rows++
		if !p.Attributed() {
			unattributed++
			return nil
		}
		if p.Validate() != nil {
			flagged++
			p.Sanitize()
		}
		key := [2]string{p.Region, p.QueueID}
		if _, dup := seen[key]; dup {
			duplicates++
		}
		seen[key] = struct{}{}
		projects = append(projects, p)
		return nil
	})
	if err != nil {
		logger.Fatal(ctx, "[PREVIEW_ERROR] Failed to read projects", logging.Fields{}, err)
	}

	developerMetrics := aggregation.Aggregate(projects, asOf)
	records := scoring.Records(developerMetrics, scoring.ScoreBatch(developerMetrics, 0))

	var scored []models.DeveloperRecord
	var scores []float64
	for _, r := range records {
		if r.Scored() {
			scored = append(scored, r)
			scores = append(scores, *r.Score)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if *scored[i].Score != *scored[j].Score {
			return *scored[i].Score > *scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("RELIABILITY PREVIEW (as of %s)\n", asOf.Format("2006-01-02"))
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Rows read:          %d\n", rows)
	fmt.Printf("Unattributed:       %d\n", unattributed)
	fmt.Printf("Flagged:            %d\n", flagged)
	fmt.Printf("Duplicates:         %d\n", duplicates)
	fmt.Printf("Developers:         %d\n", len(records))
	fmt.Printf("Scored:             %d\n", len(scored))
	if mean, err := stats.Mean(scores); err == nil {
		median, _ := stats.Median(scores)
		fmt.Printf("Mean score:         %.1f\n", mean)
		fmt.Printf("Median score:       %.1f\n", median)
	}
	fmt.Println()

	if *top > len(scored) {
		*top = len(scored)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tDEVELOPER\tSCORE\tBUCKET\tPROJECTS\tOPERATIONAL\tCOMPLETION")
	for i, r := range scored[:*top] {
		completion := "-"
		if r.CompletionRate != nil {
			completion = fmt.Sprintf("%.1f%%", *r.CompletionRate*100)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\t%d\t%d\t%s\n",
			i+1, r.Name, *r.Score, scoring.Bucket(*r.Score), r.TotalProjects, r.Operational, completion)
	}
	tw.Flush()
}
