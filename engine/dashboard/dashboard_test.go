package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/centinela-gamma/centinela/engine/analysis"
	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/docstore"
	"github.com/centinela-gamma/centinela/engine/domain"
	"github.com/centinela-gamma/centinela/engine/network"
	"github.com/centinela-gamma/centinela/engine/report"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var fixedNow = func() time.Time { return time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC) }

func testCollection() domain.Collection {
	posts := []domain.ScoredPost{
		{Post: domain.Post{ID: "1", Text: "Children killed in airstrike, eyewitness says", Author: "a", CreatedAt: "2024-01-15T14:30:00Z", Location: "Gaza City", QuerySource: "Gaza"},
			RelevanceScore: 95, IsCritical: true, KeywordsDetected: []string{"children killed", "airstrike"}},
		{Post: domain.Post{ID: "2", Text: "Home demolition reported near Jenin", Author: "b", CreatedAt: "2024-01-16T09:00:00Z", Location: "Jenin", QuerySource: "Jenin"},
			RelevanceScore: 82, IsCritical: true, KeywordsDetected: []string{"home demolition"}},
		{Post: domain.Post{ID: "3", Text: "Checkpoint queues again", Author: "c", CreatedAt: "2024-01-16T10:00:00Z", QuerySource: "West Bank"},
			RelevanceScore: 40, KeywordsDetected: []string{}},
		{Post: domain.Post{ID: "4", Text: "Shelling overnight", Author: "a", CreatedAt: "2024-01-17T02:00:00Z", Location: "Khan Younis, Gaza", QuerySource: "Gaza"},
			RelevanceScore: 70, IsCritical: true, KeywordsDetected: []string{"shelling"}},
	}
	var c domain.Collection
	c.Posts = posts
	c.Metadata.ExtractionInfo = domain.ExtractionInfo{
		Timestamp: "2024-01-17T03:00:00Z", TotalTweets: len(posts), BudgetUsed: 0.000004, TweetsPerDollar: 4000,
	}
	c.Metadata.Statistics = domain.CollectionStats{CriticalTweets: 3, CriticalPercentage: 75}
	c.Metadata.QueryBreakdown = map[string]domain.QueryStats{"Gaza": {TweetCount: 2}, "Jenin": {TweetCount: 1}, "West Bank": {TweetCount: 1}}
	c.Metadata.WarCrimesIndicators = domain.IndicatorCounts{CivilianCasualties: 1, InfrastructureAttacks: 1, SettlementActivities: 1}
	return c
}

// fakeSource serves fixed documents or errors.
type fakeSource struct {
	rep     *report.Report
	coll    *report.Input
	repErr  error
	collErr error
}

func (f fakeSource) LoadLatestReport() (report.Report, error) {
	if f.repErr != nil {
		return report.Report{}, f.repErr
	}
	if f.rep == nil {
		return report.Report{}, fmt.Errorf("load: %w", domain.ErrNotFound)
	}
	return *f.rep, nil
}

func (f fakeSource) LoadLatestCollection() (report.Input, error) {
	if f.collErr != nil {
		return report.Input{}, f.collErr
	}
	if f.coll == nil {
		return report.Input{}, fmt.Errorf("load: %w", domain.ErrNotFound)
	}
	return *f.coll, nil
}

func buildReport(t *testing.T, c domain.Collection) *report.Report {
	t.Helper()
	cfg := config.Default()
	rep := report.NewBuilder(cfg, analysis.NewAggregator(cfg, quiet())).Build(report.Input{Collection: c})
	return &rep
}

func newServer(src Source, opts Options) http.Handler {
	opts.Analysis = config.Default()
	opts.Logger = quiet()
	opts.Now = fixedNow
	mux := http.NewServeMux()
	New(src, opts).Register(mux)
	return mux
}

func get(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s: content type = %q", path, ct)
	}
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s: decode: %v\n%s", path, err, rec.Body.String())
		}
	}
	return rec
}

var allRoutes = []string{
	"/api/palestine/overview",
	"/api/palestine/war-crimes-analysis",
	"/api/palestine/critical-incidents",
	"/api/palestine/location-hotspots",
	"/api/palestine/timeline",
	"/api/palestine/victim-statistics",
	"/api/palestine/latest-data",
}

func TestNoData_404(t *testing.T) {
	h := newServer(fakeSource{}, Options{})
	for _, path := range allRoutes {
		rec := get(t, h, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
			continue
		}
		var body ErrorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode error body: %v", path, err)
		}
		if body.Error == "" || body.Timestamp != "2024-01-20T12:00:00Z" {
			t.Errorf("%s: body = %+v", path, body)
		}
	}
}

func TestLoadError_500(t *testing.T) {
	h := newServer(fakeSource{repErr: errors.New("disk on fire")}, Options{})
	for _, path := range allRoutes {
		rec := get(t, h, path, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", path, rec.Code)
		}
	}
}

func TestCorruptCollection(t *testing.T) {
	c := testCollection()
	decodeErr := errors.New("docstore: decode centinela_posts_x.json: unexpected end of JSON input")

	h := newServer(fakeSource{rep: buildReport(t, c), collErr: decodeErr}, Options{})
	for _, path := range allRoutes {
		if rec := get(t, h, path, nil); rec.Code != http.StatusOK {
			t.Errorf("with report %s: status = %d, want 200", path, rec.Code)
		}
	}
	var out Incidents
	get(t, h, "/api/palestine/critical-incidents", &out)
	if out.Source != "report_examples" || len(out.Incidents) == 0 {
		t.Errorf("incidents = %+v", out)
	}

	h = newServer(fakeSource{collErr: decodeErr}, Options{})
	for _, path := range allRoutes {
		if rec := get(t, h, path, nil); rec.Code != http.StatusInternalServerError {
			t.Errorf("without report %s: status = %d, want 500", path, rec.Code)
		}
	}
}

func TestEveryRouteAnswers(t *testing.T) {
	c := testCollection()
	in := report.Input{Collection: c}
	sources := map[string]fakeSource{
		"report+collection": {rep: buildReport(t, c), coll: &in},
		"report only":       {rep: buildReport(t, c)},
		"collection only":   {coll: &in},
	}
	for name, src := range sources {
		h := newServer(src, Options{})
		for _, path := range allRoutes {
			var body map[string]any
			if rec := get(t, h, path, &body); rec.Code != http.StatusOK {
				t.Errorf("%s %s: status = %d body %s", name, path, rec.Code, rec.Body.String())
			}
		}
	}
}

func TestOverview_Report(t *testing.T) {
	c := testCollection()
	h := newServer(fakeSource{rep: buildReport(t, c)}, Options{})
	var out struct {
		DataType             string        `json:"data_type"`
		Region               string        `json:"region"`
		DocumentationMetrics ReportMetrics `json:"documentation_metrics"`
		SeverityAssessment   Assessment    `json:"severity_assessment"`
	}
	get(t, h, "/api/palestine/overview", &out)
	if out.DataType != "PROCESSED_METRICS" || out.Region != "Palestine/Israel" {
		t.Errorf("header = %+v", out)
	}
	m := out.DocumentationMetrics
	if m.TotalTweetsDocumented != 4 || m.CriticalIncidents != 3 || m.UniqueSources != 3 {
		t.Errorf("metrics = %+v", m)
	}
	if m.ChildrenCasualties != 1 {
		t.Errorf("children casualties = %d, want 1", m.ChildrenCasualties)
	}
	if out.SeverityAssessment.CriticalPercentage != 75 {
		t.Errorf("critical pct = %v", out.SeverityAssessment.CriticalPercentage)
	}
}

func TestOverview_FallsBackToCollection(t *testing.T) {
	c := testCollection()
	c.Metadata.Statistics.CriticalPercentage = 0
	in := report.Input{Collection: c}
	h := newServer(fakeSource{coll: &in}, Options{})
	var out struct {
		DataType             string            `json:"data_type"`
		DocumentationMetrics CollectionMetrics `json:"documentation_metrics"`
		PipelineStatus       CollectionStatus  `json:"pipeline_status"`
		SeverityAssessment   Assessment        `json:"severity_assessment"`
	}
	get(t, h, "/api/palestine/overview", &out)
	if out.DataType != "COLLECTION_METADATA" {
		t.Errorf("data type = %s", out.DataType)
	}
	if out.DocumentationMetrics.DocumentationEfficiency != 4000 || out.PipelineStatus.CoverageAreas != 3 {
		t.Errorf("got %+v %+v", out.DocumentationMetrics, out.PipelineStatus)
	}
	a := out.SeverityAssessment
	if a.CriticalPercentage != 75 || a.WarCrimesIndicators != 3 || a.AlertLevel != analysis.SeverityLow {
		t.Errorf("assessment = %+v", a)
	}
}

func TestWarCrimesAnalysis(t *testing.T) {
	c := testCollection()
	in := report.Input{Collection: c}
	h := newServer(fakeSource{rep: buildReport(t, c), coll: &in}, Options{})
	var out WarCrimes
	get(t, h, "/api/palestine/war-crimes-analysis", &out)
	if out.Summary.SeverityScore != 0 || out.Summary.DocumentationConfidence != ConfidenceLow {
		t.Errorf("summary = %+v", out.Summary)
	}
	if len(out.Summary.PrimaryViolations) != 3 {
		t.Errorf("primary violations = %v", out.Summary.PrimaryViolations)
	}
	if out.EvidenceQuality.SourceDiversity != 3 || out.EvidenceQuality.WitnessAccounts != 1 {
		t.Errorf("evidence = %+v", out.EvidenceQuality)
	}
	if len(out.TemporalPatterns.MostActiveDays) != 3 || out.TemporalPatterns.MostActiveDays[0].Date != "2024-01-16" {
		t.Errorf("most active = %v", out.TemporalPatterns.MostActiveDays)
	}
	if got := out.TemporalPatterns.PeakActivityHours; len(got) == 0 || got[0] != "14:00" {
		t.Errorf("peak hours = %v", got)
	}
	if out.LegalImplications.GenevaConventions == nil || out.LegalImplications.ICJCases == nil {
		t.Error("legal lists must encode as arrays")
	}
}

func TestCriticalIncidents(t *testing.T) {
	c := testCollection()
	in := report.Input{Collection: c}
	h := newServer(fakeSource{coll: &in}, Options{MaxIncidents: 1})
	var out Incidents
	get(t, h, "/api/palestine/critical-incidents", &out)
	if out.Source != "collection" {
		t.Errorf("source = %s", out.Source)
	}
	if len(out.Incidents) != 1 {
		t.Fatalf("incidents = %d, want 1", len(out.Incidents))
	}
	first := out.Incidents[0]
	if first.ID != "1" || first.Type != IncidentMilitaryAttack || first.Severity != SeverityCritical || !first.Verified {
		t.Errorf("first = %+v", first)
	}
	if out.Summary.TotalCritical != 2 || out.Summary.VerifiedIncidents != 1 {
		t.Errorf("summary = %+v", out.Summary)
	}
	if v, _ := out.Summary.SeverityDistribution.Get(SeverityHigh); v != 1 {
		t.Errorf("distribution = %v", out.Summary.SeverityDistribution)
	}
}

func TestCriticalIncidents_FromReportExamples(t *testing.T) {
	c := testCollection()
	h := newServer(fakeSource{rep: buildReport(t, c)}, Options{})
	var out Incidents
	get(t, h, "/api/palestine/critical-incidents", &out)
	if out.Source != "report_examples" {
		t.Errorf("source = %s", out.Source)
	}
	// most_critical keeps relevance above 85, so only post 1 survives.
	if len(out.Incidents) != 1 || out.Incidents[0].Location != "Gaza City" {
		t.Errorf("incidents = %+v", out.Incidents)
	}
}

func TestLocationHotspots(t *testing.T) {
	c := testCollection()
	h := newServer(fakeSource{rep: buildReport(t, c)}, Options{})
	var out Hotspots
	get(t, h, "/api/palestine/location-hotspots", &out)
	if out.TotalLocations != 3 || out.MostAffectedRegion != "Gaza" {
		t.Errorf("got %+v", out)
	}
	if len(out.Regions) == 0 || out.Regions[0].Location != "Gaza" || out.Regions[0].Severity != analysis.SeverityHigh {
		t.Errorf("regions = %+v", out.Regions)
	}
	for _, l := range out.HotspotLocations {
		if l.Location == "Jenin" && l.Region != "West Bank" {
			t.Errorf("Jenin region = %s", l.Region)
		}
	}
}

func TestRegionHotspots(t *testing.T) {
	g := analysis.GeographicAnalysis{RegionalDistribution: days("A", 1, "B", 9)}
	got := RegionHotspots(g)
	if got[0].Location != "B" || got[0].Share != 90 || got[0].Severity != analysis.SeverityExtreme {
		t.Errorf("got %+v", got[0])
	}
	if got[1].Severity != analysis.SeverityLow {
		t.Errorf("got %+v", got[1])
	}
}

func TestTimeline(t *testing.T) {
	c := testCollection()
	in := report.Input{Collection: c}
	h := newServer(fakeSource{coll: &in}, Options{})
	var out Timeline
	get(t, h, "/api/palestine/timeline", &out)
	if len(out.Events) != 4 {
		t.Fatalf("events = %+v", out.Events)
	}
	if out.Events[0].Type != "system" || out.Events[1].Time != "2024-01-17" {
		t.Errorf("order = %+v", out.Events)
	}
}

func TestTimelineEvents_Spike(t *testing.T) {
	got := TimelineEvents(days("2024-01-01", 1, "2024-01-02", 1, "2024-01-03", 1, "2024-01-04", 1, "2024-01-05", 30))
	if got[0].Time != "2024-01-05" || got[0].Type != "spike" || got[1].Type != "activity" {
		t.Errorf("got %+v", got)
	}
}

func TestVictimStatistics(t *testing.T) {
	c := testCollection()
	h := newServer(fakeSource{rep: buildReport(t, c)}, Options{})
	var out Victims
	get(t, h, "/api/palestine/victim-statistics", &out)
	if keys := out.CasualtyMentions.Keys(); len(keys) != 2 || keys[1] != "children_casualties" {
		t.Errorf("casualty keys = %v", keys)
	}
	if v, _ := out.CasualtyMentions.Get("children_casualties"); v != 1 {
		t.Errorf("children = %d", v)
	}
	if len(out.InfrastructureMentions) != 4 || out.TotalPostsAnalyzed != 4 {
		t.Errorf("got %+v", out)
	}
}

func TestLatestData(t *testing.T) {
	c := testCollection()
	in := report.Input{Collection: c}
	h := newServer(fakeSource{rep: buildReport(t, c), coll: &in}, Options{})
	var out LatestData
	get(t, h, "/api/palestine/latest-data", &out)
	if out.Status != "REAL_DATA" || out.SampleSize != 4 || out.TotalSize != 4 {
		t.Errorf("got status=%s sample=%d total=%d", out.Status, out.SampleSize, out.TotalSize)
	}
	if out.Metadata == nil || out.ReportMetadata == nil {
		t.Error("both metadata blocks expected")
	}

	h = newServer(fakeSource{rep: buildReport(t, c)}, Options{})
	out = LatestData{}
	get(t, h, "/api/palestine/latest-data", &out)
	if out.Status != "PROCESSED_ONLY" || out.SampleSize != 0 || out.IncidentSample == nil {
		t.Errorf("report only: %+v", out)
	}
}

type fakeCoordination struct {
	gotMin, gotLimit int
	err              error
}

func (f *fakeCoordination) SharedContent(_ context.Context, minAuthors, limit int) ([]network.SharedContent, error) {
	f.gotMin, f.gotLimit = minAuthors, limit
	if f.err != nil {
		return nil, f.err
	}
	return []network.SharedContent{{Prefix: "same text", Authors: []string{"a", "b", "c"}, Posts: 3}}, nil
}

func TestCoordination(t *testing.T) {
	h := newServer(fakeSource{}, Options{})
	if rec := get(t, h, "/api/palestine/coordination", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured status = %d", rec.Code)
	}

	fc := &fakeCoordination{}
	h = newServer(fakeSource{}, Options{Coordination: fc})
	var out struct {
		SharedContent []network.SharedContent `json:"shared_content"`
	}
	if rec := get(t, h, "/api/palestine/coordination?min_authors=5&limit=bad", &out); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if fc.gotMin != 5 || fc.gotLimit != defaultSharedContents {
		t.Errorf("params = %d %d", fc.gotMin, fc.gotLimit)
	}
	if len(out.SharedContent) != 1 {
		t.Errorf("shared = %+v", out.SharedContent)
	}

	fc.err = errors.New("neo4j down")
	if rec := get(t, h, "/api/palestine/coordination", nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("error status = %d", rec.Code)
	}
}

func TestRepositoryBacked(t *testing.T) {
	store, err := docstore.New(t.TempDir(), quiet())
	if err != nil {
		t.Fatal(err)
	}
	repo := report.NewRepository(store)
	h := newServer(repo, Options{})
	if rec := get(t, h, "/api/palestine/overview", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("empty store status = %d", rec.Code)
	}

	c := testCollection()
	if _, err := repo.SaveCollection(c); err != nil {
		t.Fatal(err)
	}
	var out Overview
	if rec := get(t, h, "/api/palestine/overview", &out); rec.Code != http.StatusOK || out.DataType != "COLLECTION_METADATA" {
		t.Fatalf("collection only: %d %s", rec.Code, out.DataType)
	}

	if _, err := repo.SaveReport(*buildReport(t, c)); err != nil {
		t.Fatal(err)
	}
	out = Overview{}
	get(t, h, "/api/palestine/overview", &out)
	if out.DataType != "PROCESSED_METRICS" {
		t.Errorf("data type = %s", out.DataType)
	}
}
