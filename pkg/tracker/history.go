package tracker

import "github.com/kass/go-proximity-index/pkg/models"

// history is a fixed-capacity ring buffer of location samples. The
// backing slice is allocated once; pushes past capacity overwrite the
// oldest entry via a moving cursor, so steady-state updates allocate
// nothing.
type history struct {
	samples []models.LocationSample
	head    int // next write position
	size    int
}

func newHistory(capacity int) *history {
	return &history{samples: make([]models.LocationSample, capacity)}
}

func (h *history) push(s models.LocationSample) {
	h.samples[h.head] = s
	h.head = (h.head + 1) % len(h.samples)
	if h.size < len(h.samples) {
		h.size++
	}
}

// latest returns the most recent sample, if any.
func (h *history) latest() (models.LocationSample, bool) {
	if h.size == 0 {
		return models.LocationSample{}, false
	}
	return h.samples[(h.head-1+len(h.samples))%len(h.samples)], true
}

func (h *history) len() int {
	return h.size
}

// snapshot copies the retained samples oldest-first.
func (h *history) snapshot() []models.LocationSample {
	out := make([]models.LocationSample, h.size)
	start := (h.head - h.size + len(h.samples)) % len(h.samples)
	for i := 0; i < h.size; i++ {
		out[i] = h.samples[(start+i)%len(h.samples)]
	}
	return out
}
