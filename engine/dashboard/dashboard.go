// Package dashboard serves the read-only JSON views over the newest report
// and collection documents.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/centinela-gamma/centinela/engine/analysis"
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/engine/examples"
	"github.com/centinela-gamma/centinela/engine/network"
	"github.com/centinela-gamma/centinela/engine/report"
	"github.com/centinela-gamma/centinela/engine/sample"
	"github.com/centinela-gamma/centinela/pkg/fn"
)

// Display limits.
const (
	DefaultMaxIncidents   = 15
	criticalCandidates    = 20
	criticalMinRelevance  = 80
	verifiedMinRelevance  = 85
	evidenceSampleSize    = 1000
	latestSampleSize      = 100
	mostActiveDays        = 5
	descriptionLimit      = 200
	defaultSharedAuthors  = 3
	defaultSharedContents = 20
)

// Source loads the documents the dashboard reads. *report.Repository
// satisfies it.
type Source interface {
	LoadLatestReport() (report.Report, error)
	LoadLatestCollection() (report.Input, error)
}

// Coordination finds content posted by several authors. *network.Store
// satisfies it.
type Coordination interface {
	SharedContent(ctx context.Context, minAuthors, limit int) ([]network.SharedContent, error)
}

// Options configures a Server.
type Options struct {
	Analysis     config.Analysis
	Region       string
	MaxIncidents int
	// Coordination is optional; without it the coordination view answers
	// 503.
	Coordination Coordination
	Logger       *slog.Logger
	Now          func() time.Time
}

// Server answers the dashboard endpoints.
type Server struct {
	src  Source
	opts Options
	log  *slog.Logger
}

// New builds a Server over src.
func New(src Source, opts Options) *Server {
	if opts.MaxIncidents <= 0 {
		opts.MaxIncidents = DefaultMaxIncidents
	}
	if opts.Region == "" {
		opts.Region = "Palestine/Israel"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{src: src, opts: opts, log: opts.Logger.With("component", "dashboard")}
}

// Register mounts every endpoint on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/palestine/overview", s.handleOverview)
	mux.HandleFunc("GET /api/palestine/war-crimes-analysis", s.handleWarCrimes)
	mux.HandleFunc("GET /api/palestine/critical-incidents", s.handleCriticalIncidents)
	mux.HandleFunc("GET /api/palestine/location-hotspots", s.handleHotspots)
	mux.HandleFunc("GET /api/palestine/timeline", s.handleTimeline)
	mux.HandleFunc("GET /api/palestine/victim-statistics", s.handleVictims)
	mux.HandleFunc("GET /api/palestine/latest-data", s.handleLatestData)
	mux.HandleFunc("GET /api/palestine/coordination", s.handleCoordination)
}

// snapshot is what one request could load. At least one of the two is set.
type snapshot struct {
	report     *report.Report
	collection *report.Input
}

// load reads the newest report and, when withPosts is set or no report
// exists, the newest collection. A collection that fails to load is
// skipped when a report is available. It wraps domain.ErrNotFound only when
// neither document exists.
func (s *Server) load(withPosts bool) (snapshot, error) {
	var snap snapshot
	rep, err := s.src.LoadLatestReport()
	switch {
	case err == nil:
		snap.report = &rep
	case !errors.Is(err, domain.ErrNotFound):
		return snap, err
	}
	if snap.report != nil && !withPosts {
		return snap, nil
	}
	in, err := s.src.LoadLatestCollection()
	switch {
	case err == nil:
		snap.collection = &in
	case errors.Is(err, domain.ErrNotFound):
	case snap.report != nil:
		s.log.Warn("collection unavailable, serving report only", "err", err)
	default:
		return snap, err
	}
	if snap.report == nil && snap.collection == nil {
		return snap, fmt.Errorf("no report or collection available: %w", domain.ErrNotFound)
	}
	return snap, nil
}

func (snap snapshot) posts(n int) []domain.ScoredPost {
	if snap.collection == nil {
		return nil
	}
	ps := snap.collection.Collection.Posts
	if n > 0 && len(ps) > n {
		ps = ps[:n]
	}
	return ps
}

func (snap snapshot) indicators() domain.IndicatorCounts {
	if snap.report != nil {
		return snap.report.BasicMetrics.WarCrimesIndicators
	}
	return snap.collection.Collection.Metadata.WarCrimesIndicators
}

// temporal and geographic fall back to recomputing over the first posts of
// the collection when no report exists.
func (s *Server) temporal(snap snapshot) analysis.TemporalAnalysis {
	if snap.report != nil {
		return snap.report.TemporalAnalysis
	}
	return analysis.Temporal(snap.posts(evidenceSampleSize), s.opts.Analysis.Temporal)
}

func (s *Server) geographic(snap snapshot) analysis.GeographicAnalysis {
	if snap.report != nil {
		return snap.report.GeographicAnalysis
	}
	return analysis.Geographic(snap.posts(evidenceSampleSize), s.opts.Analysis.Geography)
}

func (s *Server) violations(snap snapshot) analysis.ViolationAnalysis {
	if snap.report != nil {
		return snap.report.WarCrimesAnalysis
	}
	return analysis.Violations(snap.posts(0), s.opts.Analysis.Violations)
}

func (s *Server) timestamp() string { return s.opts.Now().UTC().Format(time.RFC3339) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"
	if errors.Is(err, domain.ErrNotFound) {
		status = http.StatusNotFound
		msg = "no data available"
	} else {
		s.log.Error("dashboard request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, ErrorBody{Error: msg, Timestamp: s.timestamp()})
}

// --- overview ---

// Overview is the response of /overview. DocumentationMetrics and Status
// differ between a processed report and a raw collection.
type Overview struct {
	Status               string     `json:"status"`
	LastUpdate           string     `json:"last_update"`
	Region               string     `json:"region"`
	DataType             string     `json:"data_type"`
	DocumentationMetrics any        `json:"documentation_metrics"`
	PipelineStatus       any        `json:"pipeline_status"`
	SeverityAssessment   Assessment `json:"severity_assessment"`
}

// Assessment is the severity block shared by both overview shapes.
type Assessment struct {
	CriticalPercentage  float64 `json:"critical_percentage"`
	WarCrimesIndicators int     `json:"war_crimes_indicators"`
	AlertLevel          string  `json:"alert_level"`
}

// ReportMetrics are the overview counters read from a processed report.
type ReportMetrics struct {
	TotalTweetsDocumented      int     `json:"total_tweets_documented"`
	CriticalIncidents          int     `json:"critical_incidents"`
	UniqueSources              int     `json:"unique_sources"`
	AvgRelevance               float64 `json:"avg_relevance"`
	CivilianCasualtiesReported int     `json:"civilian_casualties_reported"`
	InfrastructureAttacks      int     `json:"infrastructure_attacks"`
	ChildrenCasualties         int     `json:"children_casualties"`
	WarCrimesSeverity          string  `json:"war_crimes_severity"`
	BotProbability             float64 `json:"bot_probability"`
	BotConfidence              string  `json:"bot_confidence"`
}

// ReportStatus describes the processing run behind a report.
type ReportStatus struct {
	Status          string  `json:"status"`
	LastProcessing  string  `json:"last_processing"`
	OriginalSizeMB  float64 `json:"original_size_mb"`
	AnalysisVersion string  `json:"analysis_version"`
	RunID           string  `json:"run_id,omitempty"`
}

// CollectionMetrics are the overview counters read from collection
// metadata.
type CollectionMetrics struct {
	TotalTweetsDocumented      int     `json:"total_tweets_documented"`
	CriticalIncidents          int     `json:"critical_incidents"`
	CivilianCasualtiesReported int     `json:"civilian_casualties_reported"`
	InfrastructureAttacks      int     `json:"infrastructure_attacks"`
	SettlementViolations       int     `json:"settlement_violations"`
	HumanitarianViolations     int     `json:"humanitarian_violations"`
	DocumentationEfficiency    float64 `json:"documentation_efficiency"`
}

// CollectionStatus describes the collection run.
type CollectionStatus struct {
	Status         string  `json:"status"`
	LastExtraction string  `json:"last_extraction"`
	BudgetUtilized float64 `json:"budget_utilized"`
	CoverageAreas  int     `json:"coverage_areas"`
	Simulated      bool    `json:"simulated"`
}

func nonZero(o analysis.Ordered[int]) int {
	n := 0
	for _, e := range o {
		if e.Value > 0 {
			n++
		}
	}
	return n
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	snap, err := s.load(false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := Overview{
		Status:     "ACTIVE_DOCUMENTATION",
		LastUpdate: s.timestamp(),
		Region:     s.opts.Region,
	}
	if rep := snap.report; rep != nil {
		b := rep.BasicMetrics
		ind := rep.WarCrimesAnalysis.Indicators
		civ, _ := ind.Get("civilian_casualties")
		infra, _ := ind.Get("infrastructure_attacks")
		children, _ := ind.Get("children_casualties")
		out.DataType = "PROCESSED_METRICS"
		out.DocumentationMetrics = ReportMetrics{
			TotalTweetsDocumented:      b.TotalTweets,
			CriticalIncidents:          b.CriticalTweets,
			UniqueSources:              b.UniqueAuthors,
			AvgRelevance:               b.AvgRelevanceScore,
			CivilianCasualtiesReported: civ,
			InfrastructureAttacks:      infra,
			ChildrenCasualties:         children,
			WarCrimesSeverity:          rep.WarCrimesAnalysis.SeverityLevel,
			BotProbability:             rep.BotAnalysis.BotProbabilityPercentage,
			BotConfidence:              rep.BotAnalysis.ConfidenceLevel,
		}
		out.PipelineStatus = ReportStatus{
			Status:          "OPTIMIZED",
			LastProcessing:  rep.Metadata.ProcessingTimestamp,
			OriginalSizeMB:  rep.Metadata.OriginalFileSizeMB,
			AnalysisVersion: rep.Metadata.ProcessingVersion,
			RunID:           rep.Metadata.RunID,
		}
		out.SeverityAssessment = Assessment{
			CriticalPercentage:  b.CriticalPercentage,
			WarCrimesIndicators: nonZero(ind),
			AlertLevel:          rep.WarCrimesAnalysis.SeverityLevel,
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	meta := snap.collection.Collection.Metadata
	ex, st, ind := meta.ExtractionInfo, meta.Statistics, meta.WarCrimesIndicators
	critPct := st.CriticalPercentage
	if critPct == 0 && ex.TotalTweets > 0 {
		critPct = analysis.Round2(float64(st.CriticalTweets) / float64(ex.TotalTweets) * 100)
	}
	indicators := 0
	for _, v := range []int{ind.CivilianCasualties, ind.InfrastructureAttacks, ind.SettlementActivities, ind.HumanitarianViolations} {
		if v > 0 {
			indicators++
		}
	}
	out.DataType = "COLLECTION_METADATA"
	out.DocumentationMetrics = CollectionMetrics{
		TotalTweetsDocumented:      ex.TotalTweets,
		CriticalIncidents:          st.CriticalTweets,
		CivilianCasualtiesReported: ind.CivilianCasualties,
		InfrastructureAttacks:      ind.InfrastructureAttacks,
		SettlementViolations:       ind.SettlementActivities,
		HumanitarianViolations:     ind.HumanitarianViolations,
		DocumentationEfficiency:    ex.TweetsPerDollar,
	}
	out.PipelineStatus = CollectionStatus{
		Status:         "ACTIVE",
		LastExtraction: ex.Timestamp,
		BudgetUtilized: ex.BudgetUsed,
		CoverageAreas:  len(meta.QueryBreakdown),
		Simulated:      ex.Simulated,
	}
	out.SeverityAssessment = Assessment{
		CriticalPercentage:  critPct,
		WarCrimesIndicators: indicators,
		AlertLevel:          AlertLevel(critPct, ind.Sum()),
	}
	writeJSON(w, http.StatusOK, out)
}

// --- war crimes analysis ---

// CategoryCount is one row of the primary violations list.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// WarCrimesSummary is the headline block of /war-crimes-analysis.
type WarCrimesSummary struct {
	TotalIncidentsDocumented int             `json:"total_incidents_documented"`
	SeverityScore            int             `json:"severity_score"`
	PrimaryViolations        []CategoryCount `json:"primary_violations"`
	DocumentationConfidence  string          `json:"documentation_confidence"`
}

// DayCount is one row of the most-active-days list.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TemporalPatterns is the time block of /war-crimes-analysis.
type TemporalPatterns struct {
	HourlyDistribution   analysis.Ordered[int] `json:"hourly_distribution"`
	DailyDistribution    analysis.Ordered[int] `json:"daily_distribution"`
	PeakActivityHours    []string              `json:"peak_activity_hours"`
	MostActiveDays       []DayCount            `json:"most_active_days"`
	EscalationIndicators []string              `json:"escalation_indicators"`
}

// LegalImplications lists the instruments the counters point at.
type LegalImplications struct {
	GenevaConventions []string `json:"geneva_conventions_violations"`
	RomeStatute       []string `json:"rome_statute_articles"`
	ICJCases          []string `json:"icj_applicable_cases"`
}

// WarCrimes is the response of /war-crimes-analysis.
type WarCrimes struct {
	Summary                WarCrimesSummary            `json:"war_crimes_summary"`
	CrimeCategories        analysis.Ordered[int]       `json:"crime_categories"`
	IndicatorAnalysis      analysis.ViolationAnalysis  `json:"indicator_analysis"`
	TemporalPatterns       TemporalPatterns            `json:"temporal_patterns"`
	GeographicDistribution analysis.GeographicAnalysis `json:"geographic_distribution"`
	LegalImplications      LegalImplications           `json:"legal_implications"`
	EvidenceQuality        Evidence                    `json:"evidence_quality"`
	Timestamp              string                      `json:"timestamp"`
}

func crimeCategories(c domain.IndicatorCounts) analysis.Ordered[int] {
	return analysis.Ordered[int]{
		{Key: "civilian_attacks", Value: c.CivilianCasualties},
		{Key: "infrastructure_destruction", Value: c.InfrastructureAttacks},
		{Key: "settlement_activities", Value: c.SettlementActivities},
		{Key: "humanitarian_violations", Value: c.HumanitarianViolations},
	}
}

// PrimaryViolations returns the three largest categories, ties in category
// order.
func PrimaryViolations(c domain.IndicatorCounts) []CategoryCount {
	rows := make([]CategoryCount, 0, 4)
	for _, e := range crimeCategories(c) {
		rows = append(rows, CategoryCount{Category: e.Key, Count: e.Value})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	return rows[:3]
}

func peakHours(hourly analysis.Ordered[int], n int) []string {
	rows := make([]DayCount, 0, len(hourly))
	for _, h := range hourly {
		rows = append(rows, DayCount{Date: h.Key, Count: h.Value})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	out := []string{}
	for i, r := range rows {
		if i == n {
			break
		}
		h, err := strconv.Atoi(r.Date)
		if err != nil {
			continue
		}
		out = append(out, fmt.Sprintf("%02d:00", h))
	}
	return out
}

func (s *Server) handleWarCrimes(w http.ResponseWriter, r *http.Request) {
	snap, err := s.load(true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ind := snap.indicators()
	severity := DocumentationSeverity(ind)
	tm := s.temporal(snap)
	topHours := s.opts.Analysis.Temporal.TopHours
	if topHours <= 0 {
		topHours = 3
	}
	writeJSON(w, http.StatusOK, WarCrimes{
		Summary: WarCrimesSummary{
			TotalIncidentsDocumented: ind.Sum(),
			SeverityScore:            severity,
			PrimaryViolations:        PrimaryViolations(ind),
			DocumentationConfidence:  DocumentationConfidence(severity),
		},
		CrimeCategories:   crimeCategories(ind),
		IndicatorAnalysis: s.violations(snap),
		TemporalPatterns: TemporalPatterns{
			HourlyDistribution:   tm.HourlyDistribution,
			DailyDistribution:    tm.DailyDistribution,
			PeakActivityHours:    peakHours(tm.HourlyDistribution, topHours),
			MostActiveDays:       MostActiveDays(tm.DailyDistribution, mostActiveDays),
			EscalationIndicators: DetectEscalation(tm.DailyDistribution),
		},
		GeographicDistribution: s.geographic(snap),
		LegalImplications: LegalImplications{
			GenevaConventions: GenevaViolations(ind),
			RomeStatute:       RomeStatuteViolations(ind),
			ICJCases:          ICJCases(severity),
		},
		EvidenceQuality: EvidenceQuality(snap.posts(evidenceSampleSize)),
		Timestamp:       s.timestamp(),
	})
}

// --- critical incidents ---

// Incident is the display form of a critical post.
type Incident struct {
	ID             string   `json:"id,omitempty"`
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
	Description    string   `json:"description"`
	Location       string   `json:"location"`
	Timestamp      string   `json:"timestamp,omitempty"`
	Keywords       []string `json:"keywords"`
	RelevanceScore int      `json:"relevance_score"`
	Verified       bool     `json:"verified"`
}

// IncidentSummary counts the candidate incidents.
type IncidentSummary struct {
	TotalCritical        int                   `json:"total_critical"`
	VerifiedIncidents    int                   `json:"verified_incidents"`
	SeverityDistribution analysis.Ordered[int] `json:"severity_distribution"`
}

// Incidents is the response of /critical-incidents.
type Incidents struct {
	Incidents []Incident      `json:"incidents"`
	Summary   IncidentSummary `json:"summary"`
	Source    string          `json:"source"`
}

// NewIncident converts a post into its display form.
func NewIncident(p domain.ScoredPost) Incident {
	loc := p.Location
	if loc == "" {
		loc = examples.DefaultLocation
	}
	kws := p.KeywordsDetected
	if kws == nil {
		kws = []string{}
	}
	return Incident{
		ID:             p.ID,
		Type:           ClassifyIncident(p),
		Severity:       IncidentSeverity(p),
		Description:    examples.Truncate(p.Text, descriptionLimit),
		Location:       loc,
		Timestamp:      p.CreatedAt,
		Keywords:       kws,
		RelevanceScore: p.RelevanceScore,
		Verified:       p.RelevanceScore > verifiedMinRelevance,
	}
}

// CriticalIncidents projects posts with the sampling quotas and keeps the
// first n critical posts above the relevance floor.
func CriticalIncidents(posts []domain.ScoredPost, q config.Quotas, n int) []Incident {
	projected, _ := sample.Project(posts, q)
	critical := fn.Filter(projected, func(p domain.ScoredPost) bool {
		return p.IsCritical && p.RelevanceScore > criticalMinRelevance
	})
	return append([]Incident{}, fn.Map(fn.Take(critical, n), NewIncident)...)
}

// fromExamples rebuilds posts from the most_critical subset of a report.
func fromExamples(set examples.Set) []domain.ScoredPost {
	exs, _ := set.Get(examples.MostCritical)
	out := make([]domain.ScoredPost, 0, len(exs))
	for _, e := range exs {
		out = append(out, domain.ScoredPost{
			Post:             domain.Post{Text: e.Text, Location: e.Location},
			RelevanceScore:   e.RelevanceScore,
			IsCritical:       e.IsCritical,
			KeywordsDetected: e.Keywords,
		})
	}
	return out
}

func (s *Server) handleCriticalIncidents(w http.ResponseWriter, r *http.Request) {
	snap, err := s.load(true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var (
		candidates []Incident
		source     string
	)
	if snap.collection != nil {
		candidates = CriticalIncidents(snap.collection.Collection.Posts, s.opts.Analysis.Sampling, criticalCandidates)
		source = "collection"
	} else {
		candidates = CriticalIncidents(fromExamples(snap.report.RepresentativeExamples), s.opts.Analysis.Sampling, criticalCandidates)
		source = "report_examples"
	}

	dist := analysis.Ordered[int]{
		{Key: SeverityCritical}, {Key: SeverityHigh}, {Key: SeverityMedium},
	}
	verified := 0
	for _, inc := range candidates {
		for i := range dist {
			if dist[i].Key == inc.Severity {
				dist[i].Value++
			}
		}
		if inc.Verified {
			verified++
		}
	}
	shown := candidates
	if len(shown) > s.opts.MaxIncidents {
		shown = shown[:s.opts.MaxIncidents]
	}
	writeJSON(w, http.StatusOK, Incidents{
		Incidents: shown,
		Summary: IncidentSummary{
			TotalCritical:        len(candidates),
			VerifiedIncidents:    verified,
			SeverityDistribution: dist,
		},
		Source: source,
	})
}

// --- location hotspots ---

// RegionHotspot is one region row of /location-hotspots.
type RegionHotspot struct {
	Location  string  `json:"location"`
	Incidents int     `json:"incidents"`
	Share     float64 `json:"share_percentage"`
	Severity  string  `json:"severity"`
}

// LocationHotspot is one location row of /location-hotspots.
type LocationHotspot struct {
	Location  string `json:"location"`
	Incidents int    `json:"incidents"`
	Region    string `json:"region"`
}

// Hotspots is the response of /location-hotspots.
type Hotspots struct {
	Regions            []RegionHotspot   `json:"regions"`
	HotspotLocations   []LocationHotspot `json:"hotspot_locations"`
	MostAffectedRegion string            `json:"most_affected_region"`
	TotalLocations     int               `json:"total_locations"`
}

// RegionHotspots grades each region by its share of located posts.
func RegionHotspots(g analysis.GeographicAnalysis) []RegionHotspot {
	total := 0
	for _, e := range g.RegionalDistribution {
		total += e.Value
	}
	out := make([]RegionHotspot, 0, len(g.RegionalDistribution))
	for _, e := range g.RegionalDistribution {
		share := 0.0
		if total > 0 {
			share = analysis.Round1(float64(e.Value) / float64(total) * 100)
		}
		out = append(out, RegionHotspot{
			Location:  e.Key,
			Incidents: e.Value,
			Share:     share,
			Severity:  analysis.SeverityLevel(share),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Incidents > out[j].Incidents })
	return out
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	snap, err := s.load(false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g := s.geographic(snap)
	locs := make([]LocationHotspot, 0, len(g.TopLocations))
	for _, e := range g.TopLocations {
		locs = append(locs, LocationHotspot{
			Location:  e.Key,
			Incidents: e.Value,
			Region:    analysis.ClassifyRegion(e.Key, s.opts.Analysis.Geography),
		})
	}
	writeJSON(w, http.StatusOK, Hotspots{
		Regions:            RegionHotspots(g),
		HotspotLocations:   locs,
		MostAffectedRegion: g.MostAffectedRegion,
		TotalLocations:     g.TotalLocations,
	})
}

// --- timeline ---

// Event is one row of /timeline.
type Event struct {
	Time  string `json:"time"`
	Event string `json:"event"`
	Type  string `json:"type"`
}

// Timeline is the response of /timeline.
type Timeline struct {
	Events               []Event  `json:"events"`
	PeakHours            []string `json:"peak_hours"`
	EscalationIndicators []string `json:"escalation_indicators"`
}

// TimelineEvents turns a daily distribution into events, newest first. A
// day above three times the daily mean is typed "spike".
func TimelineEvents(daily analysis.Ordered[int]) []Event {
	total := 0
	for _, d := range daily {
		total += d.Value
	}
	avg := 0.0
	if len(daily) > 0 {
		avg = float64(total) / float64(len(daily))
	}
	out := make([]Event, 0, len(daily))
	for _, d := range daily {
		kind := "activity"
		if len(daily) >= 3 && float64(d.Value) > avg*3 {
			kind = "spike"
		}
		out = append(out, Event{Time: d.Key, Event: fmt.Sprintf("%d posts documented", d.Value), Type: kind})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time > out[j].Time })
	return out
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	snap, err := s.load(false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tm := s.temporal(snap)
	events := TimelineEvents(tm.DailyDistribution)
	var system []Event
	if rep := snap.report; rep != nil && rep.Metadata.ProcessingTimestamp != "" {
		system = append(system, Event{
			Time:  rep.Metadata.ProcessingTimestamp,
			Event: fmt.Sprintf("Report processed from %d posts", rep.Metadata.OriginalTweetsCount),
			Type:  "system",
		})
	}
	if c := snap.collection; c != nil && c.Collection.Metadata.ExtractionInfo.Timestamp != "" {
		ex := c.Collection.Metadata.ExtractionInfo
		system = append(system, Event{
			Time:  ex.Timestamp,
			Event: fmt.Sprintf("Collection run gathered %d posts", ex.TotalTweets),
			Type:  "system",
		})
	}
	writeJSON(w, http.StatusOK, Timeline{
		Events:               append(system, events...),
		PeakHours:            tm.PeakHours,
		EscalationIndicators: DetectEscalation(tm.DailyDistribution),
	})
}

// --- victim statistics ---

// Victims is the response of /victim-statistics. Counts are posts that
// mention a category, not verified casualty figures.
type Victims struct {
	CasualtyMentions       analysis.Ordered[int] `json:"casualty_mentions"`
	InfrastructureMentions analysis.Ordered[int] `json:"infrastructure_mentions"`
	VictimKeywords         analysis.Ordered[int] `json:"victim_keywords"`
	TotalPostsAnalyzed     int                   `json:"total_posts_analyzed"`
	Note                   string                `json:"note"`
}

func pick(from analysis.Ordered[int], keys ...string) analysis.Ordered[int] {
	out := make(analysis.Ordered[int], 0, len(keys))
	for _, k := range keys {
		v, _ := from.Get(k)
		out = append(out, analysis.Entry[int]{Key: k, Value: v})
	}
	return out
}

func (s *Server) handleVictims(w http.ResponseWriter, r *http.Request) {
	snap, err := s.load(false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v := s.violations(snap)
	victimKeywords := analysis.Ordered[int]{}
	total := 0
	if rep := snap.report; rep != nil {
		if kws, ok := rep.KeywordsAnalysis.CategorizedKeywords.Get("victims"); ok {
			victimKeywords = kws
		}
		total = rep.BasicMetrics.TotalTweets
	} else {
		total = len(snap.collection.Collection.Posts)
	}
	writeJSON(w, http.StatusOK, Victims{
		CasualtyMentions:       pick(v.Indicators, "civilian_casualties", "children_casualties"),
		InfrastructureMentions: pick(v.Indicators, "infrastructure_attacks", "medical_attacks", "education_attacks", "religious_site_attacks"),
		VictimKeywords:         victimKeywords,
		TotalPostsAnalyzed:     total,
		Note:                   "Counts are posts mentioning each category, not verified casualty figures.",
	})
}

// --- latest data ---

// LatestData is the response of /latest-data.
type LatestData struct {
	Status             string                     `json:"status"`
	Metadata           *domain.CollectionMetadata `json:"metadata,omitempty"`
	ReportMetadata     *report.Metadata           `json:"report_metadata,omitempty"`
	IncidentSample     []domain.ScoredPost        `json:"incident_sample"`
	TotalSize          int                        `json:"total_size"`
	SampleSize         int                        `json:"sample_size"`
	DocumentationScope string                     `json:"documentation_scope"`
}

func (s *Server) handleLatestData(w http.ResponseWriter, r *http.Request) {
	snap, err := s.load(true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := LatestData{
		Status:             "PROCESSED_ONLY",
		IncidentSample:     []domain.ScoredPost{},
		DocumentationScope: s.opts.Region,
	}
	if rep := snap.report; rep != nil {
		out.ReportMetadata = &rep.Metadata
		out.TotalSize = rep.BasicMetrics.TotalTweets
	}
	if c := snap.collection; c != nil {
		out.Status = "REAL_DATA"
		out.Metadata = &c.Collection.Metadata
		out.IncidentSample = snap.posts(latestSampleSize)
		out.TotalSize = len(c.Collection.Posts)
	}
	out.SampleSize = len(out.IncidentSample)
	writeJSON(w, http.StatusOK, out)
}

// --- coordination ---

func (s *Server) handleCoordination(w http.ResponseWriter, r *http.Request) {
	if s.opts.Coordination == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorBody{Error: "author network not configured", Timestamp: s.timestamp()})
		return
	}
	minAuthors := queryInt(r, "min_authors", defaultSharedAuthors)
	limit := queryInt(r, "limit", defaultSharedContents)
	shared, err := s.opts.Coordination.SharedContent(r.Context(), minAuthors, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if shared == nil {
		shared = []network.SharedContent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shared_content": shared,
		"min_authors":    minAuthors,
		"timestamp":      s.timestamp(),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
