// Package complete implements the Completion Engine: a TransE translational
// embedding model that trains on observed triples and infers additional
// plausible ones.
package complete

import (
	"math"
	"math/rand"
	"sort"

	"github.com/brunobiangulo/kgraph/kg"
)

// Params are the TransE hyperparameters, each with the spec's default.
type Params struct {
	Dim          int     // embedding dimension, default 50
	Margin       float64 // margin ranking loss margin γ, default 1.0
	LearningRate float64 // SGD step size α, default 0.01
	Epochs       int     // training epochs E, default 100
	Seed         int64   // RNG seed for reproducible initialization/corruption
}

// DefaultParams returns the spec's default hyperparameters.
func DefaultParams() Params {
	return Params{Dim: 50, Margin: 1.0, LearningRate: 0.01, Epochs: 100, Seed: 1}
}

func (p Params) withDefaults() Params {
	if p.Dim == 0 {
		p.Dim = 50
	}
	if p.Margin == 0 {
		p.Margin = 1.0
	}
	if p.LearningRate == 0 {
		p.LearningRate = 0.01
	}
	if p.Epochs == 0 {
		p.Epochs = 100
	}
	return p
}

type vector []float64

func (v vector) clone() vector {
	out := make(vector, len(v))
	copy(out, v)
	return out
}

func (v vector) add(o vector) vector {
	out := make(vector, len(v))
	for i := range v {
		out[i] = v[i] + o[i]
	}
	return out
}

func (v vector) sub(o vector) vector {
	out := make(vector, len(v))
	for i := range v {
		out[i] = v[i] - o[i]
	}
	return out
}

func (v vector) norm() float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func (v vector) normalize() vector {
	n := v.norm()
	if n == 0 {
		return v.clone()
	}
	out := make(vector, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

// Model is a trained (or untrained) TransE model over a fixed entity and
// relation vocabulary. Field names and types are stable because Model is
// gob-encoded for persistence.
type Model struct {
	Params            Params
	EntityEmbeddings  map[string]vector
	RelationEmbeddings map[string]vector
	Entities          []string
	Relations         []string
	Trained           bool
}

// New constructs an untrained model with the given parameters.
func New(params Params) *Model {
	return &Model{
		Params:             params.withDefaults(),
		EntityEmbeddings:   make(map[string]vector),
		RelationEmbeddings: make(map[string]vector),
	}
}

type tripleKey struct{ head, relation, tail string }

// Train fits the model on observed triples: margin ranking loss with 50/50
// head/tail corruption, plain SGD, L2 re-normalization after every update.
func (m *Model) Train(triples []kg.Triple) {
	if len(triples) == 0 {
		return
	}

	entitySet := make(map[string]struct{})
	relationSet := make(map[string]struct{})
	for _, t := range triples {
		entitySet[t.HeadID] = struct{}{}
		entitySet[t.TailID] = struct{}{}
		relationSet[t.Relation] = struct{}{}
	}
	m.Entities = sortedKeys(entitySet)
	m.Relations = sortedKeys(relationSet)

	rng := rand.New(rand.NewSource(m.Params.Seed))
	m.initEmbeddings(rng)

	type pos struct{ head, relation, tail string }
	positives := make([]pos, len(triples))
	for i, t := range triples {
		positives[i] = pos{t.HeadID, t.Relation, t.TailID}
	}

	for epoch := 0; epoch < m.Params.Epochs; epoch++ {
		for _, p := range positives {
			neg := m.corrupt(p.head, p.relation, p.tail, rng)
			m.trainStep(p.head, p.relation, p.tail, neg.head, neg.relation, neg.tail)
		}
	}

	m.Trained = true
}

func (m *Model) initEmbeddings(rng *rand.Rand) {
	bound := 6 / math.Sqrt(float64(m.Params.Dim))
	for _, e := range m.Entities {
		m.EntityEmbeddings[e] = randomVector(rng, m.Params.Dim, bound).normalize()
	}
	for _, r := range m.Relations {
		m.RelationEmbeddings[r] = randomVector(rng, m.Params.Dim, bound).normalize()
	}
}

func randomVector(rng *rand.Rand, dim int, bound float64) vector {
	v := make(vector, dim)
	for i := range v {
		v[i] = bound * (2*rng.Float64() - 1)
	}
	return v
}

func (m *Model) corrupt(head, relation, tail string, rng *rand.Rand) tripleKey {
	if len(m.Entities) < 2 {
		return tripleKey{head, relation, tail}
	}
	if rng.Float64() < 0.5 {
		newHead := head
		for newHead == head {
			newHead = m.Entities[rng.Intn(len(m.Entities))]
		}
		return tripleKey{newHead, relation, tail}
	}
	newTail := tail
	for newTail == tail {
		newTail = m.Entities[rng.Intn(len(m.Entities))]
	}
	return tripleKey{head, relation, newTail}
}

func (m *Model) trainStep(posHead, posRel, posTail, negHead, negRel, negTail string) {
	hPos, rPos, tPos := m.EntityEmbeddings[posHead], m.RelationEmbeddings[posRel], m.EntityEmbeddings[posTail]
	hNeg, rNeg, tNeg := m.EntityEmbeddings[negHead], m.RelationEmbeddings[negRel], m.EntityEmbeddings[negTail]

	diffPos := hPos.add(rPos).sub(tPos)
	diffNeg := hNeg.add(rNeg).sub(tNeg)
	scorePos := diffPos.norm()
	scoreNeg := diffNeg.norm()

	loss := m.Params.Margin + scorePos - scoreNeg
	if loss <= 0 {
		return
	}

	lr := m.Params.LearningRate
	gradPos := scale(diffPos, 2)
	gradNeg := scale(diffNeg, 2)

	m.EntityEmbeddings[posHead] = hPos.sub(scale(gradPos, lr)).normalize()
	m.RelationEmbeddings[posRel] = rPos.sub(scale(gradPos, lr)).normalize()
	m.EntityEmbeddings[posTail] = tPos.add(scale(gradPos, lr)).normalize()

	m.EntityEmbeddings[negHead] = hNeg.add(scale(gradNeg, lr)).normalize()
	m.RelationEmbeddings[negRel] = rNeg.add(scale(gradNeg, lr)).normalize()
	m.EntityEmbeddings[negTail] = tNeg.sub(scale(gradNeg, lr)).normalize()
}

func scale(v vector, s float64) vector {
	out := make(vector, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Complete infers additional plausible triples: for every relation and
// every entity as head, scores every other entity as tail by
// ‖(h+r)−t‖ and keeps the 3 lowest-distance tails not already observed.
func (m *Model) Complete(entities []kg.AlignedEntity, observed []kg.Triple) []kg.Triple {
	if !m.Trained {
		m.Train(observed)
	}
	if len(m.Entities) == 0 {
		return nil
	}

	existing := make(map[tripleKey]struct{}, len(observed))
	for _, t := range observed {
		existing[tripleKey{t.HeadID, t.Relation, t.TailID}] = struct{}{}
	}

	entityIDs := make([]string, 0, len(entities))
	for _, e := range entities {
		if _, ok := m.EntityEmbeddings[e.ID]; ok {
			entityIDs = append(entityIDs, e.ID)
		}
	}

	var completed []kg.Triple
	for _, relation := range m.Relations {
		r := m.RelationEmbeddings[relation]
		for _, head := range entityIDs {
			h := m.EntityEmbeddings[head]
			hr := h.add(r)

			type scored struct {
				tail string
				dist float64
			}
			var candidates []scored
			for _, tail := range entityIDs {
				if tail == head {
					continue
				}
				if _, ok := existing[tripleKey{head, relation, tail}]; ok {
					continue
				}
				t := m.EntityEmbeddings[tail]
				candidates = append(candidates, scored{tail, hr.sub(t).norm()})
			}
			sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
			if len(candidates) > 3 {
				candidates = candidates[:3]
			}
			for _, c := range candidates {
				completed = append(completed, kg.Triple{
					HeadID:   head,
					Relation: relation,
					TailID:   c.tail,
					Source:   kg.TripleSourceCompleted,
				})
			}
		}
	}
	return completed
}
