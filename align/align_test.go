package align

import (
	"testing"

	"github.com/brunobiangulo/kgraph/kg"
)

func TestAlignMergesCloseVariants(t *testing.T) {
	mentions := []kg.EntityMention{
		{ID: "m1", Name: "百度", Type: "Organization"},
		{ID: "m2", Name: "百度公司", Type: "Organization"},
	}
	a := New(0.8)
	aligned, mergeMap := a.Align(mentions)

	if len(aligned) != 1 {
		t.Fatalf("expected 1 aligned entity, got %d: %+v", len(aligned), aligned)
	}
	if aligned[0].Name != "百度公司" {
		t.Errorf("expected canonical name to be the longer variant, got %q", aligned[0].Name)
	}
	if mergeMap["m1"] != aligned[0].ID || mergeMap["m2"] != aligned[0].ID {
		t.Errorf("expected both mentions to map to canonical id")
	}
}

func TestAlignKeepsDistinctEntitiesSeparate(t *testing.T) {
	mentions := []kg.EntityMention{
		{ID: "m1", Name: "百度公司", Type: "Organization"},
		{ID: "m2", Name: "王海峰", Type: "Person"},
	}
	a := New(0.8)
	aligned, _ := a.Align(mentions)
	if len(aligned) != 2 {
		t.Fatalf("expected 2 distinct aligned entities, got %d", len(aligned))
	}
}

func TestAlignPartitionsEveryMention(t *testing.T) {
	mentions := []kg.EntityMention{
		{ID: "m1", Name: "百度"}, {ID: "m2", Name: "百度公司"}, {ID: "m3", Name: "腾讯"},
	}
	a := New(0.8)
	aligned, mergeMap := a.Align(mentions)

	seen := make(map[string]int)
	for _, ent := range aligned {
		for _, id := range ent.MergedIDs {
			seen[id]++
		}
	}
	for _, m := range mentions {
		if seen[m.ID] != 1 {
			t.Errorf("mention %s appears in %d merged sets, want exactly 1", m.ID, seen[m.ID])
		}
		if _, ok := mergeMap[m.ID]; !ok {
			t.Errorf("mention %s missing from merge map", m.ID)
		}
	}
}

func TestAdjustTriplesRewritesEndpoints(t *testing.T) {
	mergeMap := map[string]string{"m1": "canonical1", "m2": "canonical1"}
	triples := []kg.Triple{
		{HeadID: "m1", Relation: "合作", TailID: "other"},
		{HeadID: "m2", Relation: "合作", TailID: "other"}, // becomes a duplicate of the first
	}
	out := AdjustTriples(triples, mergeMap)
	if len(out) != 1 {
		t.Fatalf("expected duplicate dropped, got %d triples: %+v", len(out), out)
	}
	if out[0].HeadID != "canonical1" {
		t.Errorf("expected head rewritten to canonical1, got %q", out[0].HeadID)
	}
}

func TestSimilarityExactNameShortCircuits(t *testing.T) {
	a := kg.EntityMention{Name: "Baidu", Type: "Organization"}
	b := kg.EntityMention{Name: "baidu", Type: "Person"}
	if got := Similarity(a, b); got != 1 {
		t.Errorf("Similarity() = %v, want 1 for case-insensitive exact match", got)
	}
}
