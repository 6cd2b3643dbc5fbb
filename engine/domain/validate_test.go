package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidatePost_Valid(t *testing.T) {
	cases := []Post{
		{ID: "1", Text: "airstrike in gaza"},
		{ID: "2", Text: "", Metrics: Engagement{RetweetCount: 3, LikeCount: 9}},
		{ID: "3", Text: "x", CreatedAt: "not a date"},
	}
	for _, p := range cases {
		if err := ValidatePost(p); err != nil {
			t.Errorf("expected valid for %+v, got %v", p, err)
		}
	}
}

func TestValidatePost_MissingID(t *testing.T) {
	err := ValidatePost(Post{ID: "  ", Text: "t"})
	if !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "id" {
		t.Fatalf("expected ValidationError on id, got %v", err)
	}
}

func TestValidatePost_NegativeEngagement(t *testing.T) {
	err := ValidatePost(Post{ID: "1", Metrics: Engagement{LikeCount: -1}})
	if !errors.Is(err, ErrNegativeEngagement) {
		t.Fatalf("expected ErrNegativeEngagement, got %v", err)
	}
	if !strings.Contains(err.Error(), "like_count") {
		t.Errorf("error should name the field: %v", err)
	}
	err = ValidatePost(Post{ID: "1", Metrics: Engagement{RetweetCount: -5}})
	if !errors.Is(err, ErrNegativeEngagement) {
		t.Fatalf("expected ErrNegativeEngagement, got %v", err)
	}
}

func TestValidatePost_InvalidUTF8(t *testing.T) {
	err := ValidatePost(Post{ID: "1", Text: "bad \xff byte"})
	if !errors.Is(err, ErrInvalidText) {
		t.Fatalf("expected ErrInvalidText, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	p := Normalize(Post{ID: " 7 ", Author: " a ", Location: " Gaza "})
	if p.ID != "7" || p.Author != "a" || p.Location != "Gaza" {
		t.Errorf("unexpected normalized post %+v", p)
	}
}

func TestAuthorKey(t *testing.T) {
	cases := []struct {
		post Post
		want string
	}{
		{Post{Author: "alice", AuthorID: "42"}, "alice"},
		{Post{AuthorID: "42"}, "42"},
		{Post{}, UnknownAuthor},
	}
	for _, c := range cases {
		if got := c.post.AuthorKey(); got != c.want {
			t.Errorf("AuthorKey(%+v) = %q, want %q", c.post, got, c.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		hour int
	}{
		{"2024-01-15T14:30:00Z", 14},
		{"2024-01-15T14:30:00.123Z", 14},
		{"2024-01-15T14:30:00", 14},
		{"2024-01-15T16:30:00+02:00", 16},
		{"2024-01-15", 0},
		{"2024-01-15T10:30Z", 10},
		{"2024-01-15T10:30", 10},
		{"2024-01-15T12:30:00+0200", 12},
		{"2024-01-15T10:30:00.5-0500", 10},
		{"20240115T103000Z", 10},
		{"20240115T1030", 10},
		{"2024-01-15 10:30:00", 10},
		{"2024-01-15T10", 10},
		{"20240115", 0},
	}
	for _, c := range cases {
		ts, err := ParseTimestamp(c.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", c.in, err)
			continue
		}
		if ts.Hour() != c.hour {
			t.Errorf("ParseTimestamp(%q) hour = %d, want %d", c.in, ts.Hour(), c.hour)
		}
	}
}

func TestParseTimestamp_Malformed(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2024-13-45T99:00:00", "2024-01-15T10:30:00+02", "2024-01-15T25:00"} {
		if _, err := ParseTimestamp(in); !errors.Is(err, ErrMalformedTimestamp) {
			t.Errorf("ParseTimestamp(%q): expected ErrMalformedTimestamp, got %v", in, err)
		}
	}
}

func TestScoredPost_JSONIsFlat(t *testing.T) {
	sp := ScoredPost{
		Post:             Post{ID: "9", Text: "t", Metrics: Engagement{RetweetCount: 1, LikeCount: 2}},
		RelevanceScore:   90,
		IsCritical:       true,
		KeywordsDetected: []string{"killed"},
	}
	data, err := json.Marshal(sp)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "text", "metrics", "relevance_score", "is_critical", "keywords_detected"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if !sp.HasKeyword("killed") || sp.HasKeyword("kill") {
		t.Error("HasKeyword should be exact")
	}
	if !sp.HasAnyKeyword([]string{"dead", "killed"}) {
		t.Error("HasAnyKeyword should match")
	}
}

func TestIndicatorCountsSum(t *testing.T) {
	c := IndicatorCounts{1, 2, 3, 4}
	if c.Sum() != 10 {
		t.Errorf("Sum = %d", c.Sum())
	}
	if (Engagement{RetweetCount: 2, LikeCount: 5}).Total() != 7 {
		t.Error("Total")
	}
}
