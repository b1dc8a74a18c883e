// Package align implements the Entity Aligner: merging duplicate entity
// mentions across documents into a canonical set, and rewriting triple
// endpoints accordingly.
package align

import (
	"github.com/google/uuid"

	"github.com/brunobiangulo/kgraph/kg"
	"github.com/brunobiangulo/kgraph/textmatch"
)

// DefaultThreshold is τ, the minimum similarity score for two mentions to
// align into the same cluster.
const DefaultThreshold = 0.8

// Aligner merges duplicate entity mentions into canonical AlignedEntity
// values using a deterministic single-pass clustering over a name+type
// similarity score.
type Aligner struct {
	// Threshold is τ; zero means DefaultThreshold.
	Threshold float64
}

// New constructs an Aligner with the given threshold (0 selects the default).
func New(threshold float64) *Aligner {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Aligner{Threshold: threshold}
}

// Align clusters mentions by similarity and returns the canonical entities
// plus a map from each original mention id to its canonical id.
func (a *Aligner) Align(mentions []kg.EntityMention) ([]kg.AlignedEntity, map[string]string) {
	n := len(mentions)
	absorbed := make([]bool, n)
	mergeMap := make(map[string]string, n)
	var aligned []kg.AlignedEntity

	for i := 0; i < n; i++ {
		if absorbed[i] {
			continue
		}
		cluster := []int{i}
		absorbed[i] = true

		for j := i + 1; j < n; j++ {
			if absorbed[j] {
				continue
			}
			if Similarity(mentions[i], mentions[j]) >= a.Threshold {
				cluster = append(cluster, j)
				absorbed[j] = true
			}
		}

		entity := buildAlignedEntity(mentions, cluster)
		for _, idx := range cluster {
			mergeMap[mentions[idx].ID] = entity.ID
		}
		aligned = append(aligned, entity)
	}

	return aligned, mergeMap
}

// buildAlignedEntity picks the longest name as canonical (the earliest
// mention wins a tie). Mentions carry no attributes, so the returned
// entity's Attributes is left empty.
func buildAlignedEntity(mentions []kg.EntityMention, cluster []int) kg.AlignedEntity {
	canonicalIdx := cluster[0]
	for _, idx := range cluster[1:] {
		if len(mentions[idx].Name) > len(mentions[canonicalIdx].Name) {
			canonicalIdx = idx
		}
	}

	mergedIDs := make([]string, len(cluster))
	for i, idx := range cluster {
		mergedIDs[i] = mentions[idx].ID
	}

	return kg.AlignedEntity{
		ID:        uuid.NewString(),
		Name:      mentions[canonicalIdx].Name,
		Type:      mentions[canonicalIdx].Type,
		MergedIDs: mergedIDs,
	}
}

// Similarity scores two mentions: 0.7 weight on name similarity (exact name
// match short-circuits to 1), 0.3 weight on type equality.
func Similarity(a, b kg.EntityMention) float64 {
	nameA := textmatch.NormalizeName(a.Name)
	nameB := textmatch.NormalizeName(b.Name)
	if nameA == nameB {
		return 1
	}

	nameScore := textmatch.Ratio(nameA, nameB)
	typeScore := 0.5
	if a.Type == b.Type {
		typeScore = 1.0
	}
	return 0.7*nameScore + 0.3*typeScore
}

// AdjustTriples rewrites triple endpoints through mergeMap and drops any
// resulting duplicate (by tuple identity).
func AdjustTriples(triples []kg.Triple, mergeMap map[string]string) []kg.Triple {
	seen := make(map[string]struct{}, len(triples))
	var out []kg.Triple

	for _, t := range triples {
		head, ok := mergeMap[t.HeadID]
		if !ok {
			head = t.HeadID
		}
		tail, ok := mergeMap[t.TailID]
		if !ok {
			tail = t.TailID
		}

		adjusted := kg.Triple{
			HeadID:     head,
			Relation:   t.Relation,
			TailID:     tail,
			Confidence: t.Confidence,
			Source:     t.Source,
		}
		if _, dup := seen[adjusted.Key()]; dup {
			continue
		}
		seen[adjusted.Key()] = struct{}{}
		out = append(out, adjusted)
	}
	return out
}
