package product

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/catalogindex/internal/db"
)

const testVectorDim = 4

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonCreateMultiFn func(ctx context.Context, items []db.JSONSetItem) (db.CreateResult, error)
	createIndexFn     func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn       func(ctx context.Context, name string, withDocs bool) error
	indexExistsFn     func(ctx context.Context, name string) (bool, error)
	searchCountFn     func(ctx context.Context, index, query string) (int, error)
}

func (m *mockStore) JSONCreateMulti(ctx context.Context, items []db.JSONSetItem) (db.CreateResult, error) {
	if m.jsonCreateMultiFn != nil {
		return m.jsonCreateMultiFn(ctx, items)
	}
	return db.CreateResult{Created: len(items)}, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string, withDocs bool) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name, withDocs)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func testConfig() Config {
	return Config{
		Index:      "catalog",
		Language:   "french",
		Dimensions: testVectorDim,
		HNSW:       HNSWConfig{M: 16, EFConstruct: 200},
	}
}

// newTestRepo creates a repo with sequential keys.
func newTestRepo(s *mockStore) *Repo {
	r, err := New(s, testConfig(), nil)
	if err != nil {
		panic(err)
	}
	n := 0
	r.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return r
}
