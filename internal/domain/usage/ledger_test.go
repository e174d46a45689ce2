package usage

import (
	"testing"
	"time"
)

func TestLedger_FirstWriteOpensEntry(t *testing.T) {
	l := NewLedger(nil)
	l.Record("shop : names", 10)

	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Label != "shop : names" || entries[0].Tokens != 10 {
		t.Errorf("entry = %+v", entries[0])
	}
	if entries[0].At.IsZero() {
		t.Error("expected timestamp")
	}
}

func TestLedger_AccumulatesPerLabel(t *testing.T) {
	l := NewLedger(nil)
	l.Record("a", 10)
	l.Record("b", 1)
	l.Record("a", 5)
	l.Record("b", 2)

	entries := l.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Tokens != 15 {
		t.Errorf("a tokens = %d, want 15", entries[0].Tokens)
	}
	if entries[1].Tokens != 3 {
		t.Errorf("b tokens = %d, want 3", entries[1].Tokens)
	}
	if l.Total("a") != 15 || l.Total("missing") != 0 {
		t.Errorf("Total a=%d missing=%d", l.Total("a"), l.Total("missing"))
	}
}

func TestLedger_HistoryIsNotReopened(t *testing.T) {
	old := Entry{At: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Label: "a", Tokens: 100}
	l := NewLedger([]Entry{old})
	l.Record("a", 7)

	entries := l.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0] != old {
		t.Errorf("history mutated: %+v", entries[0])
	}
	if entries[1].Tokens != 7 {
		t.Errorf("new entry tokens = %d, want 7", entries[1].Tokens)
	}
}

func TestLedger_EntriesIsCopy(t *testing.T) {
	l := NewLedger(nil)
	l.Record("a", 1)

	entries := l.Entries()
	entries[0].Tokens = 999

	if l.Total("a") != 1 {
		t.Errorf("ledger mutated through Entries(): %d", l.Total("a"))
	}
}
