package fusion

import "time"

// Modality identifies the sensor a record came from.
type Modality int

const (
	Audio Modality = iota
	Video
)

func (m Modality) String() string {
	switch m {
	case Audio:
		return "audio"
	case Video:
		return "video"
	default:
		return "unknown"
	}
}

// Record is a processed value stamped with its arrival time in the buffer.
type Record[T any] struct {
	Modality Modality
	At       time.Time
	Value    T
}

// window is a fixed-capacity ring of records, oldest first. Adding to a full
// window overwrites the oldest record.
type window[T any] struct {
	records []Record[T]
	head    int // next write position
	size    int
}

func newWindow[T any](capacity int) *window[T] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &window[T]{records: make([]Record[T], capacity)}
}

func (w *window[T]) add(r Record[T]) {
	w.records[w.head] = r
	w.head = (w.head + 1) % len(w.records)
	if w.size < len(w.records) {
		w.size++
	}
}

// at returns the i-th record counting from the oldest.
func (w *window[T]) at(i int) Record[T] {
	idx := (w.head - w.size + i + len(w.records)) % len(w.records)
	return w.records[idx]
}

func (w *window[T]) latest() (Record[T], bool) {
	if w.size == 0 {
		return Record[T]{}, false
	}
	return w.at(w.size - 1), true
}

// dropFront removes the n oldest records.
func (w *window[T]) dropFront(n int) {
	if n > w.size {
		n = w.size
	}
	for i := 0; i < n; i++ {
		idx := (w.head - w.size + len(w.records)) % len(w.records)
		w.records[idx] = Record[T]{}
		w.size--
	}
}

// purgeBefore removes leading records stamped before cutoff and returns how
// many were removed.
func (w *window[T]) purgeBefore(cutoff time.Time) int {
	n := 0
	for w.size > 0 && w.at(0).At.Before(cutoff) {
		w.dropFront(1)
		n++
	}
	return n
}

func (w *window[T]) all() []Record[T] {
	out := make([]Record[T], w.size)
	for i := range out {
		out[i] = w.at(i)
	}
	return out
}
