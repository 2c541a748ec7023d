package example

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/patrikhermansson/ssg/core"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// QueryResult holds the results for a single query.
type QueryResult struct {
	idx         int
	recall      float64
	duration    time.Duration
	predicted   string
	groundTruth string
}

// BenchmarkReport summarizes a benchmark run.
type BenchmarkReport struct {
	Queries      int
	Threads      int
	AvgRecall    float64
	AvgLatency   time.Duration
	TotalRuntime time.Duration
	QPS          float64
}

// RunBenchmark runs kNN queries from ds against index and reports Recall@k and latency.
// If numQueries is negative or exceeds the number of test vectors, every query is used and
// a progress bar replaces the per-query listing. Query threads come from SSG_BENCH_NTRD.
func RunBenchmark(out io.Writer, index core.Searcher, ds *Dataset, k, numQueries, maxResults int) (BenchmarkReport, error) {
	// Activate benchmark mode if numQueries is negative or too high.
	benchmarkMode := false
	if numQueries < 0 || numQueries > len(ds.Test) {
		numQueries = len(ds.Test)
		benchmarkMode = true
	}
	if numQueries == 0 {
		return BenchmarkReport{}, fmt.Errorf("no queries to run")
	}
	threads := core.BenchThreads()
	fmt.Fprintf(out, "Running kNN queries (k=%d) on %d test vectors using %d threads\n", k, numQueries, threads)

	resultsSlice := make([]QueryResult, numQueries)
	var bar *progressbar.ProgressBar
	if benchmarkMode {
		bar = progressbar.Default(int64(numQueries))
	}

	start := time.Now()
	tasks := make(chan int, numQueries)
	errs := make(chan error, threads)
	var wg sync.WaitGroup

	// Worker function: processes queries from the task channel.
	worker := func() {
		defer wg.Done()
		for idx := range tasks {
			startQuery := time.Now()
			res, err := index.Search(ds.Test[idx], k)
			if err != nil {
				errs <- fmt.Errorf("query %d: %w", idx, err)
				return
			}
			duration := time.Since(startQuery)

			var predicted, groundTruth string
			if !benchmarkMode {
				var dists []float64
				if idx < len(ds.Distances) {
					dists = ds.Distances[idx]
				}
				predicted = FormatResults(res, maxResults)
				groundTruth = FormatGroundTruth(ds.Neighbors[idx], dists, maxResults)
			}
			resultsSlice[idx] = QueryResult{
				idx:         idx,
				recall:      RecallAtK(res, ds.Neighbors[idx], k),
				duration:    duration,
				predicted:   predicted,
				groundTruth: groundTruth,
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}

	wg.Add(threads)
	for i := 0; i < threads; i++ {
		go worker()
	}
	for i := 0; i < numQueries; i++ {
		tasks <- i
	}
	close(tasks)
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return BenchmarkReport{}, err
	}
	elapsed := time.Since(start)

	var totalRecall float64
	var totalQueryTime time.Duration
	for _, res := range resultsSlice {
		totalRecall += res.recall
		totalQueryTime += res.duration
	}
	report := BenchmarkReport{
		Queries:      numQueries,
		Threads:      threads,
		AvgRecall:    totalRecall / float64(numQueries),
		AvgLatency:   totalQueryTime / time.Duration(numQueries),
		TotalRuntime: elapsed,
		QPS:          float64(numQueries) / elapsed.Seconds(),
	}

	if !benchmarkMode {
		for i, res := range resultsSlice {
			fmt.Fprintf(out, "Query #%d:\n", i+1)
			fmt.Fprintf(out, " -> Predicted:     %s\n", res.predicted)
			fmt.Fprintf(out, " -> Ground-truth:  %s\n", res.groundTruth)
			fmt.Fprintf(out, " -> Recall@%d:     %.2f, Response time: %v\n", k, res.recall, res.duration)
		}
	}

	fmt.Fprintf(out, "Average Recall@%d over %d queries: %.4f\n", k, numQueries, report.AvgRecall)
	fmt.Fprintf(out, "Average query response time: %v\n", report.AvgLatency)
	fmt.Fprintf(out, "Throughput: %.0f queries/s\n", report.QPS)
	log.Debug().Msgf("Benchmark finished in %v", elapsed)
	return report, nil
}
