// Package usage holds the token usage ledger of the embedding provider.
package usage

import (
	"sync"
	"time"
)

// Entry is one ledger line: tokens consumed under a batch label since At.
type Entry struct {
	At     time.Time `json:"date"`
	Label  string    `json:"type"`
	Tokens int64     `json:"counter"`
}

// Ledger is an append-only sequence of token usage entries.
// The first write for a label opens a new entry; later writes for the same
// label accumulate into the most recent entry carrying that label.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
	open    map[string]int // label -> index of its most recent entry
	now     func() time.Time
}

// NewLedger creates a ledger seeded with previously persisted entries.
// Seeded entries are history: new writes never accumulate into them.
func NewLedger(history []Entry) *Ledger {
	entries := make([]Entry, len(history))
	copy(entries, history)
	return &Ledger{
		entries: entries,
		open:    make(map[string]int),
		now:     time.Now,
	}
}

// Record adds consumed tokens under label.
func (l *Ledger) Record(label string, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.open[label]; ok {
		l.entries[i].Tokens += int64(tokens)
		return
	}
	l.entries = append(l.entries, Entry{
		At:     l.now().UTC(),
		Label:  label,
		Tokens: int64(tokens),
	})
	l.open[label] = len(l.entries) - 1
}

// Entries returns a copy of all entries, history first.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Total returns tokens recorded under label during this process.
func (l *Ledger) Total(label string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.open[label]; ok {
		return l.entries[i].Tokens
	}
	return 0
}
