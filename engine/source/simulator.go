package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/centinela-gamma/centinela/engine/domain"
)

// DefaultSimulatedPosts is the size of the simulated corpus.
const DefaultSimulatedPosts = 50000

var simTemplates = []string{
	"BREAKING: Israeli forces bomb {location} in Gaza. {casualties} civilians killed including {children} children.",
	"Gaza UPDATE: {facility} destroyed by Israeli airstrike. Medical staff treating wounded in corridors.",
	"URGENT: Residential building in {gaza_area} hit by Israeli missile. Search for survivors ongoing.",
	"Gaza medics report {number} killed, {wounded} wounded in latest Israeli bombardment of {area}.",
	"West Bank: Israeli settlers attack Palestinian village {village}. Homes set on fire.",
	"IDF raids {wb_city}, arrests {arrests} Palestinians including {minors} minors during night operation.",
	"BREAKING: Israeli bulldozers demolish Palestinian home in {location} despite court order.",
	"Checkpoint violence: Israeli soldiers shoot Palestinian youth at {checkpoint}.",
	"War crime alert: Israel targets {civilian_target} in violation of international law.",
	"Human Rights Watch documents systematic home demolitions in {area}.",
	"B'Tselem: Israeli forces use excessive force against {target} protesters.",
	"Amnesty International calls for investigation into Israeli {crime_type}.",
	"Gaza hospitals overwhelmed. Only {hours} hours of electricity per day. Fuel running out.",
	"OCHA: {percentage}% of Gaza water unfit for human consumption due to Israeli siege.",
	"Palestinian families in {area} without clean water for {days} days after Israeli operation.",
	"Medical supplies blocked at Israeli checkpoints while patients die in Gaza hospitals.",
}

var (
	simLocations = []string{
		"Gaza City", "Khan Younis", "Rafah", "Jabalia", "Beit Hanoun",
		"Ramallah", "Jenin", "Nablus", "Hebron", "Bethlehem",
		"Sheikh Jarrah", "Silwan", "East Jerusalem",
	}
	simGazaAreas  = []string{"Shati", "Jabalia", "Gaza City", "Khan Younis", "Rafah"}
	simWBCities   = []string{"Jenin", "Nablus", "Ramallah", "Hebron", "Tulkarem"}
	simVillages   = []string{"Beita", "Kafr Qaddum", "Bil'in", "Ni'lin", "Al-Walaja"}
	simFacilities = []string{"Al-Shifa Hospital", "Indonesian Hospital", "Gaza clinic", "school", "mosque"}
	simTargets    = []string{"hospital", "school", "residential building", "mosque"}
	simCrimes     = []string{"home demolitions", "settlement expansion", "collective punishment"}
)

// Simulator generates a deterministic corpus of template posts. Post i is a
// pure function of i and the reference time, so repeated runs with the same
// clock produce identical collections.
type Simulator struct {
	total int
	now   func() time.Time

	mu   sync.Mutex
	next int
}

// NewSimulator creates a Simulator serving total posts across all queries.
// total <= 0 uses DefaultSimulatedPosts.
func NewSimulator(total int, now func() time.Time) *Simulator {
	if total <= 0 {
		total = DefaultSimulatedPosts
	}
	if now == nil {
		now = time.Now
	}
	return &Simulator{total: total, now: now}
}

// FetchPage implements PageFetcher. Pages are handed out from one shared
// sequence; the query only sets QuerySource.
func (s *Simulator) FetchPage(ctx context.Context, query string, pageSize int) ([]domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = MaxPageSize
	}
	s.mu.Lock()
	start := s.next
	if start >= s.total {
		s.mu.Unlock()
		return nil, ErrNoMorePages
	}
	end := min(start+pageSize, s.total)
	s.next = end
	s.mu.Unlock()

	ref := s.now().UTC()
	posts := make([]domain.Post, 0, end-start)
	for i := start; i < end; i++ {
		p := SimulatedPost(i, ref)
		p.QuerySource = query
		posts = append(posts, p)
	}
	return posts, nil
}

// SimulatedPost returns post i of the simulated corpus relative to ref.
func SimulatedPost(i int, ref time.Time) domain.Post {
	return domain.Post{
		ID:        fmt.Sprintf("SIM_GAMMA_%05d", i),
		Text:      simText(i),
		Author:    fmt.Sprintf("user_%d", i%2000),
		AuthorID:  fmt.Sprintf("id_%d", i%2000),
		CreatedAt: ref.Add(-time.Duration(i%72) * time.Hour).Format(time.RFC3339),
		Location:  simLocations[i%len(simLocations)],
		Metrics:   domain.Engagement{RetweetCount: i % 100, LikeCount: i % 500},
	}
}

func simText(i int) string {
	n := func(mod, off int) string { return strconv.Itoa(i%mod + off) }
	target := "unarmed"
	if i%2 == 0 {
		target = "peaceful"
	}
	r := strings.NewReplacer(
		"{location}", simLocations[i%len(simLocations)],
		"{casualties}", n(15, 1),
		"{children}", n(8, 1),
		"{facility}", simFacilities[i%len(simFacilities)],
		"{gaza_area}", simGazaAreas[i%len(simGazaAreas)],
		"{number}", n(25, 1),
		"{wounded}", n(50, 5),
		"{area}", simLocations[i%len(simLocations)],
		"{village}", simVillages[i%len(simVillages)],
		"{wb_city}", simWBCities[i%len(simWBCities)],
		"{arrests}", n(20, 1),
		"{minors}", n(5, 1),
		"{checkpoint}", "Checkpoint "+n(10, 1),
		"{civilian_target}", simTargets[i%len(simTargets)],
		"{crime_type}", simCrimes[i%len(simCrimes)],
		"{target}", target,
		"{hours}", n(8, 4),
		"{percentage}", n(30, 70),
		"{days}", n(10, 1),
	)
	return r.Replace(simTemplates[i%len(simTemplates)])
}
