// Package network exports collections into a Neo4j author/post/keyword
// graph and answers coordination queries over it.
package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/centinela-gamma/centinela/engine/analysis"
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/pkg/repo"
)

// DefaultBatchSize is the number of posts written per UNWIND statement.
const DefaultBatchSize = 1000

// Author is an account node.
type Author struct {
	Key      string `json:"key"`
	Name     string `json:"name,omitempty"`
	AuthorID string `json:"author_id,omitempty"`
	Posts    int64  `json:"posts"`
}

// SharedContent is a content prefix posted by several authors.
type SharedContent struct {
	Prefix  string   `json:"prefix"`
	Authors []string `json:"authors"`
	Posts   int64    `json:"posts"`
}

// Store writes and queries the post graph.
type Store struct {
	driver    neo4j.DriverWithContext
	authors   *repo.Neo4jRepo[Author, string]
	geo       config.Geography
	prefixLen int
	batchSize int
}

// New creates a Store using the region rules and prefix length of cfg.
func New(driver neo4j.DriverWithContext, cfg config.Analysis) *Store {
	return &Store{
		driver:    driver,
		authors:   newAuthorRepo(driver),
		geo:       cfg.Geography,
		prefixLen: cfg.Bots.PrefixLength,
		batchSize: DefaultBatchSize,
	}
}

var schema = []string{
	`CREATE CONSTRAINT author_key IF NOT EXISTS FOR (a:Author) REQUIRE a.key IS UNIQUE`,
	`CREATE CONSTRAINT post_id IF NOT EXISTS FOR (p:Post) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT keyword_name IF NOT EXISTS FOR (k:Keyword) REQUIRE k.name IS UNIQUE`,
	`CREATE INDEX post_prefix IF NOT EXISTS FOR (p:Post) ON (p.prefix)`,
}

// EnsureSchema creates the uniqueness constraints and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)
	for _, stmt := range schema {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("network schema: %w", err)
		}
	}
	return nil
}

const savePosts = `
UNWIND $rows AS row
MERGE (a:Author {key: row.author_key})
  SET a.name = row.author, a.author_id = row.author_id
MERGE (p:Post {id: row.id})
  SET p.text = row.text, p.prefix = row.prefix, p.created_at = row.created_at,
      p.location = row.location, p.region = row.region, p.query = row.query,
      p.relevance = row.relevance, p.critical = row.critical,
      p.retweets = row.retweets, p.likes = row.likes, p.run_id = $run_id
MERGE (a)-[:POSTED]->(p)
WITH p, row
UNWIND row.keywords AS kw
MERGE (k:Keyword {name: kw})
MERGE (p)-[:MENTIONS]->(k)`

const countAuthorPosts = `
UNWIND $keys AS key
MATCH (a:Author {key: key})
OPTIONAL MATCH (a)-[:POSTED]->(p:Post)
WITH a, count(p) AS n
SET a.posts = n`

// SaveCollection merges every post of c with its author and keywords in one
// write transaction.
func (s *Store) SaveCollection(ctx context.Context, c domain.Collection) error {
	rows := postRows(c.Posts, s.geo, s.prefixLen)
	if len(rows) == 0 {
		return nil
	}
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for start := 0; start < len(rows); start += s.batchSize {
			end := min(start+s.batchSize, len(rows))
			if _, err := tx.Run(ctx, savePosts, map[string]any{
				"rows":   rows[start:end],
				"run_id": c.Metadata.RunID,
			}); err != nil {
				return nil, err
			}
		}
		_, err := tx.Run(ctx, countAuthorPosts, map[string]any{"keys": authorKeys(c.Posts)})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("network save %d posts: %w", len(rows), err)
	}
	return nil
}

// Author returns the author with key, or domain.ErrNotFound.
func (s *Store) Author(ctx context.Context, key string) (Author, error) {
	a, err := s.authors.Get(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return Author{}, fmt.Errorf("author %q: %w", key, domain.ErrNotFound)
	}
	return a, err
}

// TopAuthors returns the most prolific authors.
func (s *Store) TopAuthors(ctx context.Context, limit int) ([]Author, error) {
	return s.authors.List(ctx, repo.ListOpts{Limit: limit, OrderBy: "posts", Desc: true})
}

const sharedContent = `
MATCH (a:Author)-[:POSTED]->(p:Post)
WITH p.prefix AS prefix, collect(DISTINCT a.key) AS authors, count(p) AS posts
WHERE size(authors) >= $min_authors
RETURN prefix, authors, posts
ORDER BY size(authors) DESC, posts DESC, prefix
LIMIT $limit`

// SharedContent returns content prefixes posted by at least minAuthors
// distinct authors, the graph form of the repeated-content bot signal.
func (s *Store) SharedContent(ctx context.Context, minAuthors, limit int) ([]SharedContent, error) {
	if minAuthors < 2 {
		minAuthors = 2
	}
	if limit <= 0 {
		limit = 20
	}
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, sharedContent, map[string]any{"min_authors": minAuthors, "limit": limit})
	if err != nil {
		return nil, err
	}
	var out []SharedContent
	for result.Next(ctx) {
		rec := result.Record()
		prefix, _, err := neo4j.GetRecordValue[string](rec, "prefix")
		if err != nil {
			return nil, err
		}
		authors, _, err := neo4j.GetRecordValue[[]any](rec, "authors")
		if err != nil {
			return nil, err
		}
		posts, _, err := neo4j.GetRecordValue[int64](rec, "posts")
		if err != nil {
			return nil, err
		}
		out = append(out, SharedContent{Prefix: prefix, Authors: toStrings(authors), Posts: posts})
	}
	return out, result.Err()
}

// postRows flattens posts into UNWIND parameter rows.
func postRows(posts []domain.ScoredPost, geo config.Geography, prefixLen int) []map[string]any {
	rows := make([]map[string]any, 0, len(posts))
	for _, p := range posts {
		kws := p.KeywordsDetected
		if kws == nil {
			kws = []string{}
		}
		rows = append(rows, map[string]any{
			"id":         p.ID,
			"author_key": p.AuthorKey(),
			"author":     p.Author,
			"author_id":  p.AuthorID,
			"text":       p.Text,
			"prefix":     analysis.ContentPrefix(p.Text, prefixLen),
			"created_at": p.CreatedAt,
			"location":   p.Location,
			"region":     analysis.ClassifyRegion(p.Location, geo),
			"query":      p.QuerySource,
			"relevance":  int64(p.RelevanceScore),
			"critical":   p.IsCritical,
			"retweets":   int64(p.Metrics.RetweetCount),
			"likes":      int64(p.Metrics.LikeCount),
			"keywords":   kws,
		})
	}
	return rows
}

func authorKeys(posts []domain.ScoredPost) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, p := range posts {
		k := p.AuthorKey()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func newAuthorRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[Author, string] {
	return repo.NewNeo4jRepo[Author, string](
		driver,
		"Author",
		authorToMap,
		authorFromRecord,
		repo.WithIDKey[Author, string]("key"),
	)
}

func authorToMap(a Author) map[string]any {
	return map[string]any{
		"key":       a.Key,
		"name":      a.Name,
		"author_id": a.AuthorID,
		"posts":     a.Posts,
	}
}

func authorFromRecord(rec *neo4j.Record) (Author, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Author{}, err
	}
	return authorFromProps(node.Props), nil
}

func authorFromProps(props map[string]any) Author {
	a := Author{
		Key:      strProp(props, "key"),
		Name:     strProp(props, "name"),
		AuthorID: strProp(props, "author_id"),
	}
	if n, ok := props["posts"].(int64); ok {
		a.Posts = n
	}
	return a
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func toStrings(vals []any) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
