package pattern

import (
	"encoding/json"
	"time"
)

// HistoryCapacity is the maximum number of entries a History retains.
const HistoryCapacity = 20

// MaxHistoryTemplateLength bounds the template excerpt stored per entry.
const MaxHistoryTemplateLength = 200

// HistoryEvent names a lifecycle event.
type HistoryEvent string

const (
	EventMerged     HistoryEvent = "merged"
	EventDeprecated HistoryEvent = "deprecated"
)

// HistoryEntry records one lifecycle event with its provenance.
type HistoryEntry struct {
	At         time.Time    `json:"at"`
	Event      HistoryEvent `json:"event"`
	MergedFrom string       `json:"merged_from,omitempty"`
	Template   string       `json:"template,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	Similarity float64      `json:"similarity,omitempty"`
	SessionID  string       `json:"session_id,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}

// History is a fixed-capacity ring buffer of HistoryEntry values.
// The zero value is an empty history ready for use. Copying a History copies
// its entries.
type History struct {
	buf  [HistoryCapacity]HistoryEntry
	head int // index of the oldest entry
	size int
}

// Append adds an entry, evicting the oldest one when the buffer is full.
func (h *History) Append(e HistoryEntry) {
	if h.size < HistoryCapacity {
		h.buf[(h.head+h.size)%HistoryCapacity] = e
		h.size++
		return
	}
	h.buf[h.head] = e
	h.head = (h.head + 1) % HistoryCapacity
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	return h.size
}

// Entries returns the retained entries, oldest first.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, 0, h.size)
	for i := 0; i < h.size; i++ {
		out = append(out, h.buf[(h.head+i)%HistoryCapacity])
	}
	return out
}

// Last returns the most recent entry.
func (h *History) Last() (HistoryEntry, bool) {
	if h.size == 0 {
		return HistoryEntry{}, false
	}
	return h.buf[(h.head+h.size-1)%HistoryCapacity], true
}

// MarshalJSON encodes the history as an oldest-first list.
func (h History) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Entries())
}

// UnmarshalJSON decodes an oldest-first list. Lists longer than the
// capacity keep only the newest entries.
func (h *History) UnmarshalJSON(data []byte) error {
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*h = History{}
	for _, e := range entries {
		h.Append(e)
	}
	return nil
}
