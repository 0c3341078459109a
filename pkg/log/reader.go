package log

import (
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events while reading a log file. Zero-value fields
// match everything.
type Filter struct {
	// SupervisorID matches one supervisor run exactly.
	SupervisorID string

	// PeerID matches one peer identity exactly.
	PeerID string

	// Category, when set, matches a single event category.
	Category *Category

	// TimeStart keeps events at or after this time.
	TimeStart *time.Time

	// TimeEnd keeps events before this time.
	TimeEnd *time.Time
}

func (f *Filter) matches(event Event) bool {
	switch {
	case f.SupervisorID != "" && event.SupervisorID != f.SupervisorID:
		return false
	case f.PeerID != "" && event.PeerID != f.PeerID:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// Reader iterates over the events in a log file, streaming so that
// large files never load whole.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens a log file for reading all of its events.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a log file and yields only events matching
// the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the
// file.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
