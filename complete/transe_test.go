package complete

import (
	"reflect"
	"testing"

	"github.com/brunobiangulo/kgraph/kg"
)

func chainTriples() []kg.Triple {
	return []kg.Triple{
		{HeadID: "A", Relation: "R", TailID: "B", Source: kg.TripleSourceExtracted},
		{HeadID: "B", Relation: "R", TailID: "C", Source: kg.TripleSourceExtracted},
	}
}

func TestTrainSetsTrainedFlag(t *testing.T) {
	m := New(Params{Dim: 8, Epochs: 5, Seed: 1})
	m.Train(chainTriples())
	if !m.Trained {
		t.Error("expected Trained=true after Train")
	}
	if len(m.EntityEmbeddings) != 3 {
		t.Errorf("expected 3 entity embeddings, got %d", len(m.EntityEmbeddings))
	}
}

func TestEmbeddingsAreNormalized(t *testing.T) {
	m := New(Params{Dim: 8, Epochs: 5, Seed: 1})
	m.Train(chainTriples())
	for id, v := range m.EntityEmbeddings {
		n := v.norm()
		if n < 0.99 || n > 1.01 {
			t.Errorf("entity %s embedding norm = %v, want ~1", id, n)
		}
	}
}

func TestCompleteFindsTransitiveTail(t *testing.T) {
	entities := []kg.AlignedEntity{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	m := New(Params{Dim: 50, Epochs: 100, Seed: 42})
	completed := m.Complete(entities, chainTriples())

	foundC := false
	for _, tr := range completed {
		if tr.HeadID == "A" && tr.Relation == "R" && tr.TailID == "C" {
			foundC = true
		}
	}
	if !foundC {
		t.Errorf("expected completion to surface A-R->C among %+v", completed)
	}
}

func TestCompleteDoesNotRepeatObserved(t *testing.T) {
	entities := []kg.AlignedEntity{{ID: "A"}, {ID: "B"}}
	observed := []kg.Triple{{HeadID: "A", Relation: "R", TailID: "B"}}
	m := New(Params{Dim: 8, Epochs: 5, Seed: 1})
	completed := m.Complete(entities, observed)
	for _, tr := range completed {
		if tr.HeadID == "A" && tr.Relation == "R" && tr.TailID == "B" {
			t.Error("completion re-emitted an already-observed triple")
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := New(Params{Dim: 8, Epochs: 5, Seed: 7})
	m.Train(chainTriples())

	data, err := Save(m)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if loaded.Trained != m.Trained {
		t.Errorf("Trained mismatch after round-trip")
	}
	if !reflect.DeepEqual(loaded.Entities, m.Entities) {
		t.Errorf("Entities mismatch after round-trip")
	}
	for id, v := range m.EntityEmbeddings {
		lv, ok := loaded.EntityEmbeddings[id]
		if !ok {
			t.Fatalf("missing entity %s after round-trip", id)
		}
		if !reflect.DeepEqual(v, lv) {
			t.Errorf("embedding for %s differs after round-trip", id)
		}
	}
}
