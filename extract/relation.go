package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/brunobiangulo/kgraph/kg"
	"github.com/brunobiangulo/kgraph/llm"
	"github.com/brunobiangulo/kgraph/textmatch"
)

// RelationExtractor produces (head, relation, tail) triples given a text and
// the set of aligned entities found in it.
type RelationExtractor interface {
	Extract(ctx context.Context, text string, entities []kg.AlignedEntity) ([]kg.Triple, error)
}

// minRelationFuzzyMatch is the threshold for the fuzzy stage of the
// capture-to-entity-id matching cascade.
const minRelationFuzzyMatch = 0.65

// symmetricMarkers identify relation captures eligible for the reverse-fuzzy
// matching stage (the relation is inherently bidirectional).
var symmetricMarkers = []string{"合作", "与", "和", "同"}

// LLMRelationExtractor asks a chat model for triples over a compact entity
// table and validates ids against the provided set.
type LLMRelationExtractor struct {
	Provider llm.Provider
	Model    string
}

func NewLLMRelationExtractor(p llm.Provider, model string) *LLMRelationExtractor {
	return &LLMRelationExtractor{Provider: p, Model: model}
}

type llmTripleResult struct {
	Entity1ID string `json:"entity1_id"`
	Relation  string `json:"relation"`
	Entity2ID string `json:"entity2_id"`
}

func (e *LLMRelationExtractor) Extract(ctx context.Context, text string, entities []kg.AlignedEntity) ([]kg.Triple, error) {
	if len(entities) < 2 {
		return nil, nil
	}

	var table strings.Builder
	valid := make(map[string]struct{}, len(entities))
	for _, ent := range entities {
		fmt.Fprintf(&table, "%s\t%s\t%s\n", ent.ID, ent.Name, ent.Type)
		valid[ent.ID] = struct{}{}
	}

	prompt := fmt.Sprintf(`Given the text and the entity table below (id, name, type), extract relations between entities. Return ONLY a JSON array of objects with exactly these fields: "entity1_id", "relation", "entity2_id", using ids from the table. No prose, no markdown fences.

Entity table:
%s
Text:
%s`, table.String(), text)

	resp, err := e.Provider.Chat(ctx, llm.ChatRequest{
		Model:       e.Model,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("llm relation extraction: %w", err)
	}

	raw := ExtractJSON(resp.Content)
	var results []llmTripleResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("parsing llm relation response: %w", err)
	}

	seen := make(map[string]struct{})
	var triples []kg.Triple
	for _, r := range results {
		if _, ok := valid[r.Entity1ID]; !ok {
			continue
		}
		if _, ok := valid[r.Entity2ID]; !ok {
			continue
		}
		if r.Relation == "" {
			continue
		}
		t := kg.Triple{
			HeadID:   r.Entity1ID,
			Relation: strings.ToUpper(SanitizeLabel(r.Relation)),
			TailID:   r.Entity2ID,
			Source:   kg.TripleSourceExtracted,
		}
		if _, dup := seen[t.Key()]; dup {
			continue
		}
		seen[t.Key()] = struct{}{}
		triples = append(triples, t)
	}
	return triples, nil
}

// relationPattern is one canonical surface pattern: two named capture
// groups "x" and "y" for the endpoints, and either a fixed relation label
// or a verb extracted from a capture group named "verb".
type relationPattern struct {
	re       *regexp.Regexp
	relation string // fixed label, or "" to use the "verb" capture
}

// rulePatterns implements the canonical table from the Relation Extractor's
// rule strategy.
var rulePatterns = []relationPattern{
	{regexp.MustCompile(`(?P<x>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})(?:与|和|同)(?P<y>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})(?:合作|达成合作|战略合作)`), "合作"},
	{regexp.MustCompile(`(?P<x>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})(?P<verb>推出|发布|研发|研制)(?P<y>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})`), ""},
	{regexp.MustCompile(`(?P<x>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})(?P<verb>是|属于|任职于|担任)(?P<y>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})(?:的[\x{4e00}-\x{9fa5}A-Za-z0-9]{0,20})?`), ""},
	{regexp.MustCompile(`(?P<x>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})(?P<verb>领导|带领|负责)(?P<y>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})`), ""},
	{regexp.MustCompile(`(?P<x>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})(?:于|在)(?P<time>\d{4}年(?:\d{1,2}月)?)(?P<verb>推出|发布|成立)(?P<y>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})`), ""},
	{regexp.MustCompile(`(?P<x>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})(?P<verb>包括|包含)(?P<y>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})`), ""},
	{regexp.MustCompile(`(?P<x>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})(?P<verb>表示|称|说)(?P<y>[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20})`), ""},
}

// RuleRelationExtractor matches the canonical surface patterns against text
// and resolves captures to aligned entity ids via a matching cascade.
type RuleRelationExtractor struct{}

func NewRuleRelationExtractor() *RuleRelationExtractor { return &RuleRelationExtractor{} }

func (e *RuleRelationExtractor) Extract(ctx context.Context, text string, entities []kg.AlignedEntity) ([]kg.Triple, error) {
	seen := make(map[string]struct{})
	var triples []kg.Triple

	for _, p := range rulePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			groups := namedGroups(p.re, m)

			xName, hasX := groups["x"]
			yName, hasY := groups["y"]
			if !hasX || !hasY {
				continue
			}

			relation := p.relation
			if relation == "" {
				relation = groups["verb"]
			}
			if timeVal, ok := groups["time"]; ok && timeVal != "" {
				relation = "于" + timeVal + relation
			}
			if relation == "" {
				continue
			}

			headID, ok1 := resolveEntityID(xName, entities, relation)
			tailID, ok2 := resolveEntityID(yName, entities, relation)
			if !ok1 || !ok2 || headID == tailID {
				continue
			}

			t := kg.Triple{
				HeadID:   headID,
				Relation: strings.ToUpper(SanitizeLabel(relation)),
				TailID:   tailID,
				Source:   kg.TripleSourceExtracted,
			}
			if _, dup := seen[t.Key()]; dup {
				continue
			}
			seen[t.Key()] = struct{}{}
			triples = append(triples, t)
		}
	}
	return triples, nil
}

func namedGroups(re *regexp.Regexp, match []string) map[string]string {
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name == "" || i >= len(match) {
			continue
		}
		out[name] = match[i]
	}
	return out
}

// resolveEntityID maps a raw text capture to a canonical entity id using the
// cascade: exact name -> substring (longest canonical name first) -> fuzzy
// -> reverse-fuzzy (symmetric relations only).
func resolveEntityID(capture string, entities []kg.AlignedEntity, relation string) (string, bool) {
	capture = strings.TrimSpace(capture)
	if capture == "" {
		return "", false
	}

	for _, ent := range entities {
		if ent.Name == capture {
			return ent.ID, true
		}
	}

	sorted := make([]kg.AlignedEntity, len(entities))
	copy(sorted, entities)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if len(sorted[j].Name) > len(sorted[i].Name) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	for _, ent := range sorted {
		if textmatch.Contains(capture, ent.Name) || textmatch.Contains(ent.Name, capture) {
			return ent.ID, true
		}
	}

	best := ""
	bestScore := 0.0
	for _, ent := range entities {
		score := textmatch.Ratio(capture, ent.Name)
		if score >= minRelationFuzzyMatch && score > bestScore {
			best, bestScore = ent.ID, score
		}
	}
	if best != "" {
		return best, true
	}

	if isSymmetricRelation(relation) {
		for _, ent := range entities {
			score := textmatch.Ratio(ent.Name, capture)
			if score >= minRelationFuzzyMatch {
				return ent.ID, true
			}
		}
	}

	return "", false
}

func isSymmetricRelation(relation string) bool {
	for _, marker := range symmetricMarkers {
		if strings.Contains(relation, marker) {
			return true
		}
	}
	return false
}
