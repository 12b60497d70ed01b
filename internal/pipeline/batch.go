package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RecordResult pairs one batch event with its outcome. Exactly one of
// Result and Err is set.
type RecordResult struct {
	Event  Event
	Result *Result
	Err    error
}

// Failed reports whether the record's ingestion failed. A best-effort index
// failure does not count.
func (r RecordResult) Failed() bool { return r.Err != nil }

// ProcessBatch ingests every event concurrently. One record's failure never
// aborts its siblings; results come back in input order.
func (s *Service) ProcessBatch(ctx context.Context, events []Event) []RecordResult {
	results := make([]RecordResult, len(events))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentIngestions)
	for i, event := range events {
		group.Go(func() error {
			result, err := s.IngestOne(groupCtx, event)
			results[i] = RecordResult{Event: event, Result: result, Err: err}
			return nil
		})
	}
	group.Wait()

	return results
}

// maxConcurrentIngestions bounds batch fan-out so one large event batch
// cannot exhaust extraction-service connections.
const maxConcurrentIngestions = 8
