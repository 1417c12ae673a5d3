package queue

import "fmt"

// Stats is a point-in-time snapshot of a queue's counters.
//
// Total counts every Put call. Each of those items is either still queued,
// delivered by a Get, or dropped (evicted or rejected), so
// Dropped + Delivered + Size == Total. DropRate is Dropped/Total.
type Stats struct {
	Name      string  `json:"name"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Total     uint64  `json:"total"`
	Delivered uint64  `json:"delivered"`
	Dropped   uint64  `json:"dropped"`
	DropRate  float64 `json:"drop_rate"`
}

func dropRate(total, dropped uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(dropped) / float64(total)
}

func (s Stats) String() string {
	return fmt.Sprintf("%s: %d total, queue %d/%d, %d dropped (%.1f%%)",
		s.Name, s.Total, s.Size, s.Capacity, s.Dropped, 100*dropRate(s.Total, s.Dropped))
}
