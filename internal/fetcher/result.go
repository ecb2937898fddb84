package fetcher

// Result is the outcome of extracting one provider's headline rate.
// It crosses the worker pool back to the coordinator.
type Result struct {
	// Provider is the catalogue provider the rate was extracted for
	Provider string

	// Rate is the headline rate in percent, nil when it could not be determined
	Rate *float64

	// Err explains why Rate is nil. It is informational only; a failed
	// extraction never aborts a batch.
	Err error
}

// OK reports whether a rate was extracted.
func (r Result) OK() bool {
	return r.Rate != nil
}
