// Package report assembles the aggregate report document and persists it.
package report

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/centinela-gamma/centinela/engine/analysis"
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/docstore"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/engine/examples"
)

// Fixed metadata values.
const (
	ProcessingVersion = "1.0"
	Source            = "CENTINELA-GAMMA"
)

// Metadata describes how a report was produced.
type Metadata struct {
	ProcessingTimestamp string  `json:"processing_timestamp"`
	OriginalFileSizeMB  float64 `json:"original_file_size_mb"`
	OriginalTweetsCount int     `json:"original_tweets_count"`
	ProcessingVersion   string  `json:"processing_version"`
	Source              string  `json:"source"`
	RunID               string  `json:"run_id,omitempty"`
	SourceDocument      string  `json:"source_document,omitempty"`
}

// DashboardConfig tells the dashboard how to poll and how much to show.
type DashboardConfig struct {
	UpdateInterval      int `json:"update_interval"`
	MaxIncidentsDisplay int `json:"max_incidents_display"`
	MaxKeywordsDisplay  int `json:"max_keywords_display"`
}

// DefaultDashboard is written into every report.
var DefaultDashboard = DashboardConfig{UpdateInterval: 60000, MaxIncidentsDisplay: 8, MaxKeywordsDisplay: 10}

// Report is the aggregate document. It is regenerated wholesale on every
// run and never mutated after assembly.
type Report struct {
	Metadata               Metadata                    `json:"metadata"`
	BasicMetrics           analysis.BasicMetrics       `json:"basic_metrics"`
	BotAnalysis            analysis.BotAnalysis        `json:"bot_analysis"`
	KeywordsAnalysis       analysis.KeywordAnalysis    `json:"keywords_analysis"`
	TemporalAnalysis       analysis.TemporalAnalysis   `json:"temporal_analysis"`
	GeographicAnalysis     analysis.GeographicAnalysis `json:"geographic_analysis"`
	WarCrimesAnalysis      analysis.ViolationAnalysis  `json:"war_crimes_analysis"`
	RepresentativeExamples examples.Set                `json:"representative_examples"`
	DashboardConfig        DashboardConfig             `json:"dashboard_config"`
}

// UnmarshalJSON accepts war_crimes_indicators as an alias of
// war_crimes_analysis and fills missing sections with empty defaults.
func (r *Report) UnmarshalJSON(data []byte) error {
	type plain Report
	var aux struct {
		plain
		Legacy *analysis.ViolationAnalysis `json:"war_crimes_indicators"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Report(aux.plain)
	if aux.Legacy != nil && r.WarCrimesAnalysis.Indicators == nil && r.WarCrimesAnalysis.SeverityLevel == "" {
		r.WarCrimesAnalysis = *aux.Legacy
	}
	r.Normalize()
	return nil
}

// Normalize replaces absent collections and levels with empty defaults so
// readers never see null where a list or object is expected.
func (r *Report) Normalize() {
	if r.BotAnalysis.Indicators == nil {
		r.BotAnalysis.Indicators = []string{}
	}
	if r.BotAnalysis.Recommendations == nil {
		r.BotAnalysis.Recommendations = []string{}
	}
	if r.BotAnalysis.ConfidenceLevel == "" {
		r.BotAnalysis.ConfidenceLevel = analysis.ConfidenceLow
	}
	if r.BotAnalysis.ContentSimilaritySamples == nil {
		r.BotAnalysis.ContentSimilaritySamples = analysis.Ordered[float64]{}
	}
	k := &r.KeywordsAnalysis
	if k.TopKeywords == nil {
		k.TopKeywords = analysis.Ordered[int]{}
	}
	if k.CategorizedKeywords == nil {
		k.CategorizedKeywords = analysis.Ordered[analysis.Ordered[int]]{}
	}
	if k.CategoryTotals == nil {
		k.CategoryTotals = analysis.Ordered[int]{}
	}
	tm := &r.TemporalAnalysis
	if tm.HourlyDistribution == nil {
		tm.HourlyDistribution = analysis.Ordered[int]{}
	}
	if tm.DailyDistribution == nil {
		tm.DailyDistribution = analysis.Ordered[int]{}
	}
	if tm.PeakHours == nil {
		tm.PeakHours = []string{}
	}
	if tm.PeakDays == nil {
		tm.PeakDays = []string{}
	}
	g := &r.GeographicAnalysis
	if g.TopLocations == nil {
		g.TopLocations = analysis.Ordered[int]{}
	}
	if g.RegionalDistribution == nil {
		g.RegionalDistribution = analysis.Ordered[int]{}
	}
	if r.WarCrimesAnalysis.Indicators == nil {
		r.WarCrimesAnalysis.Indicators = analysis.Ordered[int]{}
	}
	if r.WarCrimesAnalysis.SeverityLevel == "" {
		r.WarCrimesAnalysis.SeverityLevel = analysis.SeverityLevel(r.WarCrimesAnalysis.SeverityScore)
	}
	if r.RepresentativeExamples == nil {
		r.RepresentativeExamples = examples.Set{}
	}
	for i, e := range r.RepresentativeExamples {
		if e.Value == nil {
			r.RepresentativeExamples[i].Value = []examples.Example{}
		}
	}
	if r.DashboardConfig == (DashboardConfig{}) {
		r.DashboardConfig = DefaultDashboard
	}
}

// Input identifies the collection a report is built from.
type Input struct {
	Collection domain.Collection
	File       docstore.FileInfo
}

// Builder runs aggregation and example selection and assembles the result.
type Builder struct {
	cfg   config.Analysis
	agg   *analysis.Aggregator
	now   func() time.Time
	newID func() string
}

// NewBuilder creates a Builder.
func NewBuilder(cfg config.Analysis, agg *analysis.Aggregator) *Builder {
	return &Builder{cfg: cfg, agg: agg, now: time.Now, newID: uuid.NewString}
}

// Build produces a new Report for in.
func (b *Builder) Build(in Input) Report {
	summary := b.agg.Run(in.Collection)
	ex := examples.Select(in.Collection.Posts, b.cfg.Examples)
	return Assemble(summary, ex, Metadata{
		ProcessingTimestamp: b.now().Format(time.RFC3339Nano),
		OriginalFileSizeMB:  in.File.SizeMB(),
		OriginalTweetsCount: len(in.Collection.Posts),
		RunID:               b.newID(),
		SourceDocument:      in.File.Path,
	})
}

// Assemble combines the sections with meta. ProcessingVersion and Source are
// always set to the fixed values.
func Assemble(s analysis.Summary, ex examples.Set, meta Metadata) Report {
	meta.ProcessingVersion = ProcessingVersion
	meta.Source = Source
	r := Report{
		Metadata:               meta,
		BasicMetrics:           s.Basic,
		BotAnalysis:            s.Bots,
		KeywordsAnalysis:       s.Keywords,
		TemporalAnalysis:       s.Temporal,
		GeographicAnalysis:     s.Geographic,
		WarCrimesAnalysis:      s.Violations,
		RepresentativeExamples: ex,
		DashboardConfig:        DefaultDashboard,
	}
	r.Normalize()
	return r
}

// Reduction is the percentage by which after is smaller than before.
func Reduction(before, after int64) float64 {
	return float64(before-after) / math.Max(float64(before), 1) * 100
}
