package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// ValidatePost is the gate applied to posts arriving from outside the
// process. Timestamps are deliberately not checked: a post with a bad
// timestamp is still ingested and only drops out of temporal statistics.
func ValidatePost(p Post) error {
	if strings.TrimSpace(p.ID) == "" {
		return NewValidationError("id", p.ID, ErrMissingID)
	}
	if !utf8.ValidString(p.Text) {
		return NewValidationError("text", p.ID, ErrInvalidText)
	}
	if p.Metrics.RetweetCount < 0 {
		return NewValidationError("metrics.retweet_count", strconv.Itoa(p.Metrics.RetweetCount), ErrNegativeEngagement)
	}
	if p.Metrics.LikeCount < 0 {
		return NewValidationError("metrics.like_count", strconv.Itoa(p.Metrics.LikeCount), ErrNegativeEngagement)
	}
	return nil
}

// Normalize trims surrounding whitespace from identifier-like fields.
func Normalize(p Post) Post {
	p.ID = strings.TrimSpace(p.ID)
	p.Author = strings.TrimSpace(p.Author)
	p.AuthorID = strings.TrimSpace(p.AuthorID)
	p.Location = strings.TrimSpace(p.Location)
	p.CreatedAt = strings.TrimSpace(p.CreatedAt)
	return p
}
