package examples

import (
	"fmt"
	"strings"
	"testing"

	"github.com/centinela-gamma/centinela/engine/config"
	"github.com/centinela-gamma/centinela/engine/domain"
)

func post(id string, score int, critical bool, rt, likes int, kws ...string) domain.ScoredPost {
	return domain.ScoredPost{
		Post:             domain.Post{ID: id, Text: "post " + id, Metrics: domain.Engagement{RetweetCount: rt, LikeCount: likes}},
		RelevanceScore:   score,
		IsCritical:       critical,
		KeywordsDetected: kws,
	}
}

func TestSelect_MostCritical(t *testing.T) {
	posts := []domain.ScoredPost{
		post("a", 86, true, 0, 0, "killed"),
		post("b", 85, true, 0, 0, "killed"),
		post("c", 99, false, 0, 0),
		post("d", 95, true, 0, 0, "siege"),
		post("e", 90, true, 0, 0, "siege"),
		post("f", 95, true, 0, 0, "dead"),
	}
	set := Select(posts, config.Default().Examples)
	got, ok := set.Get(MostCritical)
	if !ok {
		t.Fatal("most_critical missing")
	}
	var texts []string
	for _, ex := range got {
		if !ex.IsCritical || ex.RelevanceScore <= 85 {
			t.Errorf("ineligible example %+v", ex)
		}
		texts = append(texts, ex.Text)
	}
	if strings.Join(texts, ",") != "post d,post f,post e,post a" {
		t.Errorf("order = %v", texts)
	}
}

func TestSelect_MostCriticalLimit(t *testing.T) {
	var posts []domain.ScoredPost
	for i := 0; i < 20; i++ {
		posts = append(posts, post(fmt.Sprint(i), 86+i%10, true, 0, 0, "killed"))
	}
	got, _ := Select(posts, config.Default().Examples).Get(MostCritical)
	if len(got) != 5 {
		t.Fatalf("expected 5, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].RelevanceScore > got[i-1].RelevanceScore {
			t.Errorf("not sorted descending: %v", got)
		}
	}
}

func TestSelect_KeywordSubsets(t *testing.T) {
	posts := []domain.ScoredPost{
		post("1", 50, true, 0, 0, "children killed"),
		post("2", 50, true, 0, 0, "bombing"),
		post("3", 50, true, 0, 0, "civilians killed"),
		post("4", 50, true, 0, 0, "family killed"),
		post("5", 50, true, 0, 0, "civilians killed"),
		post("6", 50, true, 0, 0, "genocide"),
	}
	set := Select(posts, config.Default().Examples)
	civ, _ := set.Get("civilian_casualties")
	if len(civ) != 3 || civ[0].Text != "post 1" || civ[2].Text != "post 4" {
		t.Errorf("civilian_casualties = %+v", civ)
	}
	infra, _ := set.Get("infrastructure_attacks")
	if len(infra) != 1 || infra[0].Text != "post 2" {
		t.Errorf("infrastructure_attacks = %+v", infra)
	}
	wc, _ := set.Get("war_crimes")
	if len(wc) != 1 {
		t.Errorf("war_crimes = %+v", wc)
	}
	want := []string{MostCritical, "civilian_casualties", "infrastructure_attacks", "war_crimes", HighEngagement}
	if strings.Join(set.Keys(), ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v", set.Keys())
	}
}

func TestSelect_HighEngagementStable(t *testing.T) {
	posts := []domain.ScoredPost{
		post("low", 30, false, 0, 1),
		post("tie1", 30, false, 5, 5),
		post("top", 30, false, 50, 50),
		post("tie2", 30, false, 10, 0),
	}
	got, _ := Select(posts, config.Default().Examples).Get(HighEngagement)
	if len(got) != 3 || got[0].Text != "post top" || got[1].Text != "post tie1" || got[2].Text != "post tie2" {
		t.Errorf("high_engagement = %+v", got)
	}
	if posts[0].ID != "low" {
		t.Error("input slice was reordered")
	}
}

func TestSelect_Empty(t *testing.T) {
	set := Select(nil, config.Default().Examples)
	if len(set) != 5 {
		t.Fatalf("expected 5 subsets, got %d", len(set))
	}
	for _, e := range set {
		if e.Value == nil || len(e.Value) != 0 {
			t.Errorf("%s should be an empty list, got %v", e.Key, e.Value)
		}
	}
}

func TestFormat(t *testing.T) {
	p := post("x", 70, true, 3, 4, "a", "b", "c", "d")
	p.Text = strings.Repeat("é", 250)
	ex := Format(p, 200)
	if ex.Text != strings.Repeat("é", 200)+"..." {
		t.Errorf("text not truncated by runes: %d bytes", len(ex.Text))
	}
	if ex.Location != DefaultLocation || len(ex.Keywords) != 3 {
		t.Errorf("unexpected example %+v", ex)
	}
	if ex.Engagement != (Engagement{Retweets: 3, Likes: 4}) {
		t.Errorf("engagement = %+v", ex.Engagement)
	}
	if Truncate("short", 200) != "short" {
		t.Error("short text should be unchanged")
	}
	if Truncate(strings.Repeat("a", 200), 200) != strings.Repeat("a", 200) {
		t.Error("text at the limit should be unchanged")
	}
}
