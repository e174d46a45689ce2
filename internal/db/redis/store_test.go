package redis

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/catalogindex/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.Ping(context.Background())
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestContainsIgnoreCase(t *testing.T) {
	tests := []struct {
		s, sub string
		want   bool
	}{
		{"Unknown Index name", "unknown index name", true},
		{"ERR no such index", "NO SUCH INDEX", true},
		{"short", "longer substring", false},
		{"", "", true},
	}
	for _, tc := range tests {
		if got := containsIgnoreCase(tc.s, tc.sub); got != tc.want {
			t.Errorf("containsIgnoreCase(%q, %q) = %v, want %v", tc.s, tc.sub, got, tc.want)
		}
	}
}

// --- json.go tests ---

func TestJSONCreateMulti_AllCreated(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("JSON.SET", "catalog:doc:1", "$", `{"guid":"a"}`, "NX"),
			mock.Match("JSON.SET", "catalog:doc:2", "$", `{"guid":"b"}`, "NX"),
		).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.Result(mock.RedisString("OK")),
		})

	s := NewStoreForTest(c)
	res, err := s.JSONCreateMulti(context.Background(), []db.JSONSetItem{
		{Key: "catalog:doc:1", Data: []byte(`{"guid":"a"}`)},
		{Key: "catalog:doc:2", Data: []byte(`{"guid":"b"}`)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 2 || len(res.Rejected) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestJSONCreateMulti_Rejections(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.Result(mock.RedisNil()),
			mock.Result(mock.RedisError("ERR expected value at line 1")),
		})

	s := NewStoreForTest(c)
	res, err := s.JSONCreateMulti(context.Background(), []db.JSONSetItem{
		{Key: "k1", Data: []byte(`{}`)},
		{Key: "k2", Data: []byte(`{}`)},
		{Key: "k3", Data: []byte(`{`)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 1 {
		t.Errorf("created = %d, want 1", res.Created)
	}
	if len(res.Rejected) != 2 || res.Rejected[0].Key != "k2" || res.Rejected[1].Key != "k3" {
		t.Errorf("unexpected rejections: %+v", res.Rejected)
	}
}

func TestJSONCreateMulti_TransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.ErrorResult(context.DeadlineExceeded),
			mock.ErrorResult(context.DeadlineExceeded),
		})

	s := NewStoreForTest(c)
	_, err := s.JSONCreateMulti(context.Background(), []db.JSONSetItem{
		{Key: "k1", Data: []byte(`{}`)},
		{Key: "k2", Data: []byte(`{}`)},
	})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected cause in chain, got %v", err)
	}
}

func TestJSONCreateMulti_Empty(t *testing.T) {
	s := NewStoreForTest(nil)
	res, err := s.JSONCreateMulti(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created != 0 {
		t.Errorf("created = %d, want 0", res.Created)
	}
}

// --- index.go tests ---

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" && cmd[1] == "catalog" && cmd[2] == "ON" && cmd[3] == "JSON"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	idx := db.NewIndex("catalog").Prefix("catalog:doc:").Tag("$.guid", "guid").MustBuild()
	if err := s.CreateIndex(context.Background(), idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	idx := db.NewIndex("catalog").Tag("$.guid", "guid").MustBuild()
	err := s.CreateIndex(context.Background(), idx)
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	idx := db.NewIndex("catalog").Tag("$.guid", "guid").MustBuild()
	if err := s.CreateIndex(context.Background(), idx); !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestDropIndex_WithDocs(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "catalog", "DD")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "catalog", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_KeepDocs(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "catalog")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "catalog", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "catalog", "DD")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	err := s.DropIndex(context.Background(), "catalog", true)
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists_True(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "catalog")).
		Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("catalog"))))

	s := NewStoreForTest(c)
	exists, err := s.IndexExists(context.Background(), "catalog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected true")
	}
}

func TestIndexExists_False(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "catalog")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	exists, err := s.IndexExists(context.Background(), "catalog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected false")
	}
}

func TestIndexExists_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "catalog")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if _, err := s.IndexExists(context.Background(), "catalog"); !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestBuildCreateArgs_Validation(t *testing.T) {
	_, err := buildCreateArgs(&db.IndexDefinition{Name: "", Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}}})
	if err == nil {
		t.Error("expected error for empty name")
	}

	_, err = buildCreateArgs(&db.IndexDefinition{Name: "test"})
	if err == nil {
		t.Error("expected error for empty fields")
	}
}

func TestBuildCreateArgs_CatalogSchema(t *testing.T) {
	idx := db.NewIndex("catalog").
		Prefix("catalog:doc:").
		Language("french").
		Tag("$.guid", "guid").
		Text("$.fields.name.fr", "name_fr", 2).
		TextNoStem("$.fields.name.en", "name_en", 0).
		VectorHNSW("$.embedding", "embedding", 256, db.DistanceCosine, 16, 200).
		MustBuild()

	got, err := buildCreateArgs(idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"catalog", "ON", "JSON", "PREFIX", "1", "catalog:doc:", "LANGUAGE", "french", "SCHEMA",
		"$.guid", "AS", "guid", "TAG",
		"$.fields.name.fr", "AS", "name_fr", "TEXT", "WEIGHT", "2",
		"$.fields.name.en", "AS", "name_en", "TEXT", "NOSTEM",
		"$.embedding", "AS", "embedding", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32", "DIM", "256", "DISTANCE_METRIC", "COSINE", "M", "16", "EF_CONSTRUCTION", "200",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args =\n %v\nwant\n %v", got, want)
	}
}

func TestBuildFieldArgs_Errors(t *testing.T) {
	tests := []struct {
		name  string
		field db.IndexField
	}{
		{"empty name", db.IndexField{Type: db.IndexFieldTag}},
		{"vector without dim", db.IndexField{Name: "$.v", Type: db.IndexFieldVector}},
		{"unknown type", db.IndexField{Name: "$.x", Type: db.IndexFieldType(99)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := buildFieldArgs(&tc.field); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildVectorFieldArgs_Defaults(t *testing.T) {
	got, err := buildVectorFieldArgs(&db.IndexField{Name: "$.v", Type: db.IndexFieldVector, VectorDim: 8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"VECTOR", "HNSW", "6", "TYPE", "FLOAT32", "DIM", "8", "DISTANCE_METRIC", "COSINE"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}
}

// --- search.go tests ---

func TestSearchCount_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", "catalog", "*", "LIMIT", "0", "0")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(42))))

	s := NewStoreForTest(c)
	count, err := s.SearchCount(context.Background(), "catalog", "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("expected 42, got %d", count)
	}
}

func TestSearchCount_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray()))

	s := NewStoreForTest(c)
	count, err := s.SearchCount(context.Background(), "catalog", "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0, got %d", count)
	}
}

func TestSearchCount_UnknownIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisError("catalog: no such index")))

	s := NewStoreForTest(c)
	if _, err := s.SearchCount(context.Background(), "catalog", "*"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

// --- helpers ---

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
