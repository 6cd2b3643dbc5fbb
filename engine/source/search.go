package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/pkg/fn"
	"github.com/centinela-gamma/centinela/pkg/resilience"
)

// DefaultBaseURL is the public recent-search API.
const DefaultBaseURL = "https://api.twitter.com"

// Page size bounds accepted by the API.
const (
	MinPageSize = 10
	MaxPageSize = 100
)

// SearchConfig configures a SearchClient.
type SearchConfig struct {
	BaseURL     string
	BearerToken string
	// RequestsPerSecond paces all requests made by the client.
	RequestsPerSecond float64
	Timeout           time.Duration
	Retry             fn.RetryOpts
	Breaker           resilience.BreakerOpts
	UserAgent         string
}

// SearchClient pages through a bearer-token recent-search API. The next
// page token of every query is remembered between calls.
type SearchClient struct {
	cfg     SearchConfig
	client  *http.Client
	breaker *resilience.Breaker
	get     fn.Stage[string, *searchResponse]
	logger  *slog.Logger

	mu      sync.Mutex
	cursors map[string]string
	done    map[string]bool
}

// NewSearchClient creates a SearchClient.
func NewSearchClient(cfg SearchConfig, logger *slog.Logger) *SearchClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fn.RetryOpts{MaxAttempts: 3, InitialWait: 2 * time.Second, MaxWait: 30 * time.Second, Jitter: true}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "centinela-collector/1.0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &SearchClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewBreaker(cfg.Breaker),
		logger:  logger,
		cursors: make(map[string]string),
		done:    make(map[string]bool),
	}
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RequestsPerSecond, Burst: 1})
	c.get = resilience.LimiterStageWait(limiter, resilience.BreakerStage(c.breaker, c.doGet))
	return c
}

// FetchPage implements PageFetcher.
func (c *SearchClient) FetchPage(ctx context.Context, query string, pageSize int) ([]domain.Post, error) {
	c.mu.Lock()
	if c.done[query] {
		c.mu.Unlock()
		return nil, ErrNoMorePages
	}
	cursor := c.cursors[query]
	c.mu.Unlock()

	reqURL := c.pageURL(query, clampPageSize(pageSize), cursor)
	result := fn.Retry(ctx, c.cfg.Retry, func(ctx context.Context) fn.Result[*searchResponse] {
		r := c.get(ctx, reqURL)
		if _, err := r.Unwrap(); err != nil && (errors.Is(err, resilience.ErrCircuitOpen) || ctx.Err() != nil) {
			return fn.Err[*searchResponse](fn.Permanent(err))
		}
		return r
	})
	resp, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	c.mu.Lock()
	if resp.Meta.NextToken == "" {
		c.done[query] = true
		delete(c.cursors, query)
	} else {
		c.cursors[query] = resp.Meta.NextToken
	}
	c.mu.Unlock()

	posts := resp.posts(query)
	c.logger.Debug("search page fetched", "query", query, "posts", len(posts), "has_next", resp.Meta.NextToken != "")
	return posts, nil
}

func (c *SearchClient) pageURL(query string, pageSize int, cursor string) string {
	v := url.Values{}
	v.Set("query", query)
	v.Set("max_results", strconv.Itoa(pageSize))
	v.Set("tweet.fields", "created_at,author_id,public_metrics,geo")
	v.Set("expansions", "author_id")
	v.Set("user.fields", "username,location")
	if cursor != "" {
		v.Set("next_token", cursor)
	}
	return c.cfg.BaseURL + "/2/tweets/search/recent?" + v.Encode()
}

func (c *SearchClient) doGet(ctx context.Context, reqURL string) fn.Result[*searchResponse] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fn.Err[*searchResponse](fn.Permanent(err))
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fn.Err[*searchResponse](err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return fn.Err[*searchResponse](fmt.Errorf("http %d from search API", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fn.Err[*searchResponse](fn.Permanent(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fn.Err[*searchResponse](fn.Permanent(fmt.Errorf("decode search response: %w", err)))
	}
	return fn.Ok(&out)
}

func clampPageSize(n int) int {
	if n < MinPageSize {
		return MinPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// Recent-search API response types.

type searchResponse struct {
	Data     []apiTweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type apiTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics *struct {
		RetweetCount int `json:"retweet_count"`
		LikeCount    int `json:"like_count"`
	} `json:"public_metrics"`
}

type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Location string `json:"location"`
}

func (r *searchResponse) posts(query string) []domain.Post {
	users := make(map[string]apiUser, len(r.Includes.Users))
	for _, u := range r.Includes.Users {
		users[u.ID] = u
	}
	out := make([]domain.Post, 0, len(r.Data))
	for _, t := range r.Data {
		p := domain.Post{
			ID:          t.ID,
			Text:        t.Text,
			AuthorID:    t.AuthorID,
			CreatedAt:   t.CreatedAt,
			QuerySource: query,
		}
		if u, ok := users[t.AuthorID]; ok {
			p.Author = u.Username
			p.Location = u.Location
		}
		if t.PublicMetrics != nil {
			p.Metrics = domain.Engagement{RetweetCount: t.PublicMetrics.RetweetCount, LikeCount: t.PublicMetrics.LikeCount}
		}
		out = append(out, p)
	}
	return out
}
