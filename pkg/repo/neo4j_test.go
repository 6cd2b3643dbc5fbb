package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type mockResult struct {
	records []*neo4j.Record
	idx     int
}

func (m *mockResult) Next(ctx context.Context) bool {
	if m.idx < len(m.records) {
		m.idx++
		return true
	}
	return false
}

func (m *mockResult) Record() *neo4j.Record {
	return m.records[m.idx-1]
}

type mockRunner struct {
	result  *mockResult
	err     error
	cyphers []string
	params  []map[string]any
}

func (m *mockRunner) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	m.cyphers = append(m.cyphers, cypher)
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &mockResult{}, nil
	}
	return m.result, nil
}

func (m *mockRunner) Close(ctx context.Context) error { return nil }

type author struct {
	Key   string
	Posts int64
}

func makeRecord(key string, posts int64) *neo4j.Record {
	return &neo4j.Record{
		Values: []any{map[string]any{"key": key, "posts": posts}},
		Keys:   []string{"n"},
	}
}

func newTestRepo(r *mockRunner) *Neo4jRepo[author, string] {
	repo := NewNeo4jRepo[author, string](
		nil, "Author",
		func(a author) map[string]any { return map[string]any{"key": a.Key, "posts": a.Posts} },
		func(rec *neo4j.Record) (author, error) {
			m, ok := rec.Values[0].(map[string]any)
			if !ok {
				return author{}, errors.New("bad type")
			}
			return author{Key: m["key"].(string), Posts: m["posts"].(int64)}, nil
		},
		WithIDKey[author, string]("key"),
	)
	repo.newSession = func(ctx context.Context) runner { return r }
	return repo
}

func TestGet_Success(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("alice", 3)}}}
	a, err := newTestRepo(r).Get(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if a.Key != "alice" || a.Posts != 3 {
		t.Fatalf("got %+v", a)
	}
	if !strings.Contains(r.cyphers[0], "{key: $id}") {
		t.Errorf("cypher = %s", r.cyphers[0])
	}
}

func TestGet_NotFound(t *testing.T) {
	_, err := newTestRepo(&mockRunner{}).Get(context.Background(), "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGet_RunError(t *testing.T) {
	_, err := newTestRepo(&mockRunner{err: errors.New("db down")}).Get(context.Background(), "x")
	if err == nil || err.Error() != "db down" {
		t.Fatalf("expected db down, got %v", err)
	}
}

func TestList_OrderAndDefaults(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{makeRecord("a", 5), makeRecord("b", 2)}}}
	items, err := newTestRepo(r).List(context.Background(), ListOpts{OrderBy: "posts", Desc: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
	if !strings.Contains(r.cyphers[0], "ORDER BY n.posts DESC") {
		t.Errorf("cypher = %s", r.cyphers[0])
	}
	if r.params[0]["limit"] != 100 {
		t.Errorf("default limit = %v", r.params[0]["limit"])
	}
}

func TestList_RejectsBadOrderProperty(t *testing.T) {
	r := &mockRunner{}
	_, err := newTestRepo(r).List(context.Background(), ListOpts{OrderBy: "posts; DETACH DELETE n"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(r.cyphers) != 0 {
		t.Fatal("query should not run")
	}
}

func TestList_FromRecordError(t *testing.T) {
	bad := &neo4j.Record{Values: []any{"not a map"}, Keys: []string{"n"}}
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{bad}}}
	if _, err := newTestRepo(r).List(context.Background(), ListOpts{Limit: 10}); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert(t *testing.T) {
	r := &mockRunner{}
	if err := newTestRepo(r).Upsert(context.Background(), author{Key: "alice", Posts: 7}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(r.cyphers[0], "MERGE (n:Author {key: $id})") {
		t.Errorf("cypher = %s", r.cyphers[0])
	}
	if r.params[0]["id"] != "alice" {
		t.Errorf("id param = %v", r.params[0]["id"])
	}
}

func TestDelete(t *testing.T) {
	r := &mockRunner{}
	if err := newTestRepo(r).Delete(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.cyphers[0], "DETACH DELETE") {
		t.Errorf("cypher = %s", r.cyphers[0])
	}
}
