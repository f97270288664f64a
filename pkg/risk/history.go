package risk

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// History component names.
const (
	ComponentLabeled    = "labeled"
	ComponentWholeCC    = "whole_cc"
	ComponentWholeSS    = "whole_ss"
	ComponentCorrection = "scar_correction"
	ComponentLoss       = "loss"
)

// Components lists the recorded series in their canonical order.
var Components = []string{
	ComponentLabeled,
	ComponentWholeCC,
	ComponentWholeSS,
	ComponentCorrection,
	ComponentLoss,
}

// Recorder receives the decomposition of every Compute call.
type Recorder interface {
	Record(d Decomposition)
}

// History is a bounded in-memory Recorder. The caller owns its lifecycle,
// typically one per epoch or evaluation phase.
type History struct {
	mu    sync.Mutex
	limit int
	// entries is a ring once it holds limit items; head is the oldest.
	entries    []Decomposition
	head       int
	degenerate int
}

// NewHistory creates a history keeping at most limit entries, oldest dropped
// first. A limit <= 0 keeps everything.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

func (h *History) Record(d Decomposition) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if d.Degenerate {
		h.degenerate++
	}
	if h.limit > 0 && len(h.entries) >= h.limit {
		h.entries[h.head] = d
		h.head = (h.head + 1) % len(h.entries)
		return
	}
	h.entries = append(h.entries, d)
}

// ordered returns the retained entries oldest first. The caller holds mu.
func (h *History) ordered() []Decomposition {
	out := make([]Decomposition, 0, len(h.entries))
	out = append(out, h.entries[h.head:]...)
	return append(out, h.entries[:h.head]...)
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Degenerate returns the number of degenerate batches seen since the last reset.
func (h *History) Degenerate() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.degenerate
}

// Entries returns a copy of the retained decompositions.
func (h *History) Entries() []Decomposition {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ordered()
}

// Series returns every component as an ordered sequence.
func (h *History) Series() map[string][]float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := make(map[string][]float64, len(Components))
	for _, c := range Components {
		s[c] = make([]float64, 0, len(h.entries))
	}
	for _, d := range h.ordered() {
		s[ComponentLabeled] = append(s[ComponentLabeled], d.Labeled)
		s[ComponentWholeCC] = append(s[ComponentWholeCC], d.WholeCC)
		s[ComponentWholeSS] = append(s[ComponentWholeSS], d.WholeSS)
		s[ComponentCorrection] = append(s[ComponentCorrection], d.Correction)
		s[ComponentLoss] = append(s[ComponentLoss], d.Loss)
	}
	return s
}

// Means returns the mean of every series. Empty histories yield zeros.
func (h *History) Means() map[string]float64 {
	m := make(map[string]float64, len(Components))
	for k, v := range h.Series() {
		if len(v) == 0 {
			m[k] = 0
			continue
		}
		m[k] = stat.Mean(v, nil)
	}
	return m
}

// Reset drops every entry.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.head = 0
	h.degenerate = 0
}
