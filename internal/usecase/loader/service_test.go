package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kailas-cloud/catalogindex/internal/domain"
)

// --- Mocks ---

type mockIndex struct {
	sizes    []int
	failOn   int // 1-based package number, 0 = never
	err      error
	rejectOn int
}

func (m *mockIndex) BulkCreate(_ context.Context, recs []domain.EnrichedRecord) (domain.BulkResult, error) {
	m.sizes = append(m.sizes, len(recs))
	n := len(m.sizes)
	if n == m.failOn {
		return domain.BulkResult{}, m.err
	}
	if n == m.rejectOn {
		return domain.BulkResult{
			Acknowledged: len(recs) - 2,
			Rejected: []domain.Rejection{
				{GUID: recs[0].GUID, Reason: "key already exists"},
				{GUID: recs[1].GUID, Reason: "bad vector"},
			},
		}, nil
	}
	return domain.BulkResult{Acknowledged: len(recs)}, nil
}

type mockRecovery struct {
	written []domain.EnrichedRecord
	calls   int
	err     error
}

func (m *mockRecovery) Write(recs []domain.EnrichedRecord) error {
	m.calls++
	m.written = recs
	return m.err
}

func (m *mockRecovery) Path() string { return "results/rest.json" }

func records(n int) []domain.EnrichedRecord {
	out := make([]domain.EnrichedRecord, n)
	for i := range out {
		out[i].GUID = fmt.Sprintf("sku-%d", i)
	}
	return out
}

// --- Tests ---

func TestLoad_Packages(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		limit int
		want  []int
	}{
		{"empty", 0, 1000, nil},
		{"single partial", 3, 1000, []int{3}},
		{"exact multiple", 2000, 1000, []int{1000, 1000}},
		{"remainder", 2500, 1000, []int{1000, 1000, 500}},
		{"one per package", 3, 1, []int{1, 1, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			idx := &mockIndex{}
			l := New(idx, &mockRecovery{}, Config{BulkLimit: tc.limit}, nil)

			rep, err := l.Load(context.Background(), records(tc.n))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fmt.Sprint(idx.sizes) != fmt.Sprint(tc.want) {
				t.Errorf("package sizes = %v, want %v", idx.sizes, tc.want)
			}
			if rep.Packages != len(tc.want) || rep.Acknowledged != tc.n {
				t.Errorf("report = %+v", rep)
			}
		})
	}
}

func TestLoad_DefaultBulkLimit(t *testing.T) {
	l := New(&mockIndex{}, nil, Config{}, nil)
	if l.BulkLimit() != DefaultBulkLimit {
		t.Errorf("bulk limit = %d, want %d", l.BulkLimit(), DefaultBulkLimit)
	}
}

func TestLoad_TransportErrorSavesRemaining(t *testing.T) {
	cause := errors.New("connection reset")
	idx := &mockIndex{failOn: 2, err: cause}
	rec := &mockRecovery{}
	l := New(idx, rec, Config{BulkLimit: 1000}, nil)

	in := records(2500)
	rep, err := l.Load(context.Background(), in)

	var lte *domain.LoadTransportError
	if !errors.As(err, &lte) {
		t.Fatalf("expected LoadTransportError, got %v", err)
	}
	if !errors.Is(err, domain.ErrLoadTransport) || !errors.Is(err, cause) {
		t.Errorf("error chain incomplete: %v", err)
	}
	if lte.Package != 2 || lte.Remaining != 1500 || lte.RecoveryFile != "results/rest.json" {
		t.Errorf("unexpected error fields: %+v", lte)
	}

	if rec.calls != 1 || len(rec.written) != 1500 {
		t.Fatalf("recovery wrote %d records in %d calls", len(rec.written), rec.calls)
	}
	if rec.written[0].GUID != "sku-1000" || rec.written[1499].GUID != "sku-2499" {
		t.Errorf("recovery slice starts at %s, ends at %s", rec.written[0].GUID, rec.written[1499].GUID)
	}

	if len(idx.sizes) != 2 {
		t.Errorf("load must stop at the failed package, sent %v", idx.sizes)
	}
	if rep.Packages != 1 || rep.Acknowledged != 1000 {
		t.Errorf("report = %+v", rep)
	}
}

func TestLoad_RecoveryWriteFails(t *testing.T) {
	cause := errors.New("timeout")
	l := New(&mockIndex{failOn: 1, err: cause}, &mockRecovery{err: errors.New("disk full")}, Config{BulkLimit: 10}, nil)

	_, err := l.Load(context.Background(), records(5))
	if !errors.Is(err, cause) || !errors.Is(err, domain.ErrLoadTransport) {
		t.Fatalf("expected transport cause in chain, got %v", err)
	}
	var lte *domain.LoadTransportError
	if errors.As(err, &lte) {
		t.Error("must not point the operator to a recovery file that was not written")
	}
}

func TestLoad_CountMismatch(t *testing.T) {
	idx := &mockIndex{rejectOn: 1}
	rec := &mockRecovery{}
	l := New(idx, rec, Config{BulkLimit: 1000, Verbose: true}, nil)

	rep, err := l.Load(context.Background(), records(1000))

	var cme *domain.CountMismatchError
	if !errors.As(err, &cme) {
		t.Fatalf("expected CountMismatchError, got %v", err)
	}
	if cme.Acknowledged != 998 || cme.Attempted != 1000 {
		t.Errorf("mismatch = %+v", cme)
	}
	if !errors.Is(err, domain.ErrLoadApplication) {
		t.Error("expected ErrLoadApplication in chain")
	}
	if rep.Acknowledged != 998 {
		t.Errorf("acknowledged = %d", rep.Acknowledged)
	}
	if rec.calls != 0 {
		t.Error("application errors must not write a recovery file")
	}
}
