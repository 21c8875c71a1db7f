package signals

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"propsignal/internal/models"
)

// Failure records one property whose signal computation failed.
type Failure struct {
	PropertyID int64
	Err        error
}

// BatchResult is the explicit (successes, failures) pair produced by a
// scoring pass. Partial-failure accounting is a return value, not a side
// effect of exception suppression.
type BatchResult struct {
	Summaries []models.SignalSummary
	Failures  []Failure
}

// Gatherer assembles the scoring inputs for one property. Open data being
// what it is, it may fail on malformed or missing facts.
type Gatherer func(p models.Property) (Inputs, error)

// ComputeAll folds properties into summaries. One bad property is logged
// with its id, counted, and skipped; it never aborts the batch.
func ComputeAll(properties []models.Property, gather Gatherer, now time.Time, log zerolog.Logger) BatchResult {
	result := BatchResult{
		Summaries: make([]models.SignalSummary, 0, len(properties)),
	}

	for i := range properties {
		p := properties[i]
		summary, err := computeOne(p, gather, now)
		if err != nil {
			log.Warn().Int64("property_id", p.ID).Err(err).Msg("signal computation failed, skipping property")
			result.Failures = append(result.Failures, Failure{PropertyID: p.ID, Err: err})
			continue
		}
		result.Summaries = append(result.Summaries, summary)
	}

	return result
}

// computeOne isolates a single property's computation, converting panics
// from malformed geometry or unexpected nulls into recorded failures.
func computeOne(p models.Property, gather Gatherer, now time.Time) (summary models.SignalSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic computing signals: %v", r)
		}
	}()

	inputs, err := gather(p)
	if err != nil {
		return models.SignalSummary{}, err
	}
	return Compute(inputs, now), nil
}
