package dataset

import (
	"time"

	"depositrates/internal/catalogue"
)

// TimestampLayout is the serialized form of LastScraped.
const TimestampLayout = time.RFC3339

// Record is a catalogue entry enriched with the result of one scrape.
type Record struct {
	catalogue.Entry

	// InterestRatePct is nil when the rate could not be determined.
	InterestRatePct *float64

	// LastScraped is shared by every record of the same batch.
	LastScraped time.Time
}

// Dataset holds one record per catalogue entry, in catalogue order.
type Dataset []Record

// Rate returns a pointer to v. Handy when building records by hand.
func Rate(v float64) *float64 {
	return &v
}

// BatchTime normalizes t to the precision stored with every record.
func BatchTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// LastScraped reports the batch timestamp of the dataset. All records of a
// batch share it, so the first record is representative.
func (d Dataset) LastScraped() (time.Time, bool) {
	if len(d) == 0 {
		return time.Time{}, false
	}
	return d[0].LastScraped, true
}

// Missing counts records without a rate.
func (d Dataset) Missing() int {
	n := 0
	for _, r := range d {
		if r.InterestRatePct == nil {
			n++
		}
	}
	return n
}

// Entries returns the catalogue entry of every record, in order.
func (d Dataset) Entries() []catalogue.Entry {
	entries := make([]catalogue.Entry, len(d))
	for i, r := range d {
		entries[i] = r.Entry
	}
	return entries
}
