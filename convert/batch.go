package convert

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/craftedsignal/sigma-powerquery/powerquery"
	"github.com/craftedsignal/sigma-powerquery/sigma"
)

// Job is one rule queued for conversion, tagged with where it came from
// so failures can be reported against a file.
type Job struct {
	Source string
	Rule   *sigma.Rule
}

// Result is the outcome of converting one job. Exactly one of Err or
// the output fields is meaningful.
type Result struct {
	Source string
	Rule   *sigma.Rule
	Query  string
	Record powerquery.Record
	Err    error
}

// ConvertAll dispatches jobs to a bounded worker pool and returns one
// result per job, in input order. Conversions are independent pure
// calls, so no ordering constraint exists between workers; only the
// result slice preserves input order. A failed or panicking rule is
// recorded in its slot and never blocks the rest of the batch.
func (c *Converter) ConvertAll(jobs []Job, workers int) []Result {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]Result, len(jobs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = c.convertJob(jobs[i])
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

// convertJob runs one conversion with panic recovery so a defect in a
// single rule cannot take down a worker.
func (c *Converter) convertJob(job Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("source", job.Source).
				Interface("panic", r).
				Msg("conversion panicked")
			res = Result{Source: job.Source, Rule: job.Rule, Err: fmt.Errorf("panic during conversion: %v", r)}
		}
	}()

	res = Result{Source: job.Source, Rule: job.Rule}
	record, err := c.ConvertRecord(job.Rule)
	if err != nil {
		log.Debug().Str("source", job.Source).Err(err).Msg("conversion failed")
		res.Err = err
		return res
	}
	res.Record = record
	res.Query = record.Query
	return res
}
