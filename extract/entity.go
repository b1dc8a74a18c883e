// Package extract implements the Entity Extractor and Relation Extractor
// components: turning preprocessed text into typed entity mentions and,
// given an aligned entity set, into relation triples.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/brunobiangulo/kgraph/kg"
	"github.com/brunobiangulo/kgraph/llm"
	"github.com/brunobiangulo/kgraph/textmatch"
)

// EntityExtractor produces typed entity mentions from text.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]kg.EntityMention, error)
}

// positionEpsilon is how far an LLM-reported offset may drift from the true
// occurrence before it is treated as wrong and corrected by substring search.
const positionEpsilon = 5

// minFuzzyMatch is the minimum Levenshtein ratio for an LLM-reported name to
// be accepted as matching the text at its reported offsets.
const minFuzzyMatch = 0.6

var labelSanitizer = strings.NewReplacer(`\`, "_", "/", "_", ":", "_", `"`, "_", "*", "_", "?", "_", "<", "_", ">", "_", "|", "_")

// SanitizeLabel replaces characters illegal in a graph-store label with "_".
// It is the same normalization applied to entity types and relation labels
// throughout extraction so downstream persistence never sees raw LLM output.
func SanitizeLabel(s string) string {
	return labelSanitizer.Replace(s)
}

// LLMEntityExtractor asks a chat model to return a strict JSON array of
// entities and validates/corrects the result against the source text.
type LLMEntityExtractor struct {
	Provider llm.Provider
	Model    string
}

// NewLLMEntityExtractor constructs an LLM-backed extractor.
func NewLLMEntityExtractor(p llm.Provider, model string) *LLMEntityExtractor {
	return &LLMEntityExtractor{Provider: p, Model: model}
}

type llmEntityResult struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	StartPos int    `json:"start_pos"`
	EndPos   int    `json:"end_pos"`
}

func (e *LLMEntityExtractor) Extract(ctx context.Context, text string) ([]kg.EntityMention, error) {
	prompt := fmt.Sprintf(`Extract all named entities from the text below. Return ONLY a JSON array; each element must be an object with exactly these fields: "name" (string), "type" (string), "start_pos" (integer), "end_pos" (integer), where start_pos/end_pos are character offsets into the text such that text[start_pos:end_pos] equals the entity name. No prose, no markdown fences.

Text:
%s`, text)

	resp, err := e.Provider.Chat(ctx, llm.ChatRequest{
		Model:       e.Model,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
		Timeout:     0, // quick call, use provider default
	})
	if err != nil {
		return nil, fmt.Errorf("llm entity extraction: %w", err)
	}

	raw := ExtractJSON(resp.Content)
	var results []llmEntityResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("parsing llm entity response: %w", err)
	}

	runes := []rune(text)
	var mentions []kg.EntityMention
	for _, r := range results {
		if r.Name == "" || r.Type == "" {
			continue
		}
		start, end, ok := resolvePositions(runes, r.Name, r.StartPos, r.EndPos)
		if !ok {
			continue
		}
		mentions = append(mentions, kg.EntityMention{
			ID:       uuid.NewString(),
			Name:     r.Name,
			Type:     SanitizeLabel(r.Type),
			StartPos: start,
			EndPos:   end,
		})
	}
	return mentions, nil
}

// resolvePositions validates an LLM-reported span against the source text,
// relocating it by substring search when it is off by a small amount or
// entirely wrong but the name still occurs in the text.
func resolvePositions(runes []rune, name string, start, end int) (int, int, bool) {
	n := len(runes)
	fuzzyStart, fuzzyEnd, fuzzyOK := 0, 0, false
	if start >= 0 && end <= n+positionEpsilon && start < end {
		clampedEnd := end
		if clampedEnd > n {
			clampedEnd = n
		}
		if start < clampedEnd {
			span := strings.TrimSpace(string(runes[start:clampedEnd]))
			if span == name {
				return start, clampedEnd, true
			}
			if textmatch.Ratio(span, name) >= minFuzzyMatch {
				fuzzyStart, fuzzyEnd, fuzzyOK = start, clampedEnd, true
			}
		}
	}

	idx := strings.Index(string(runes), name)
	if idx < 0 {
		return fuzzyStart, fuzzyEnd, fuzzyOK
	}
	startRune := len([]rune(string(runes)[:idx]))
	endRune := startRune + len([]rune(name))
	return startRune, endRune, true
}

// ExtractJSON strips optional code fences and returns the outermost [...]
// or {...} substring, per the shared LLM-output-parsing contract.
func ExtractJSON(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	open := s[start]
	close := byte(']')
	if open == '{' {
		close = '}'
	}
	end := strings.LastIndexByte(s, close)
	if end < start {
		return s
	}
	return s[start : end+1]
}

// LocalFallbackEntityExtractor recognizes entities with a regex bank,
// used when the LLM strategy fails or is disabled.
type LocalFallbackEntityExtractor struct {
	// ForceExtend enables the broader, noisier patterns (product/event/
	// number/title and the CJK noun sweep) even when earlier patterns
	// already matched something.
	ForceExtend bool
}

// NewLocalFallbackEntityExtractor constructs the regex-bank extractor.
func NewLocalFallbackEntityExtractor(forceExtend bool) *LocalFallbackEntityExtractor {
	return &LocalFallbackEntityExtractor{ForceExtend: forceExtend}
}

type entityPattern struct {
	re   *regexp.Regexp
	typ  string
}

var corePatterns = []entityPattern{
	{regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,4}(?:先生|女士|博士|教授|院长|总裁|总经理|主任|部长)?`), "Person_candidate"},
	{regexp.MustCompile(`\b[A-Z][a-z]+\s[A-Z][a-z]+\b`), "Person"},
	{regexp.MustCompile(`[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,20}(?:公司|集团|大学|研究院|学院|银行|医院)`), "Organization"},
	{regexp.MustCompile(`\b[A-Z][A-Za-z]*\s?(?:Inc|Corp|LLC|Ltd|Group|University|Institute)\b\.?`), "Organization"},
	{regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,8}(?:省|市|区|县|国|自治区)`), "Location"},
	{regexp.MustCompile(`\d{4}年\d{1,2}月(?:\d{1,2}日)?|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}`), "Date"},
}

var extendedPatterns = []entityPattern{
	{regexp.MustCompile(`[\x{4e00}-\x{9fa5}A-Za-z0-9]{2,16}(?:系统|平台|模型|芯片|协议|标准)`), "Product"},
	{regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,10}(?:大会|峰会|发布会|展览会)`), "Event"},
	{regexp.MustCompile(`\b\d+(?:\.\d+)?%?\b`), "Number"},
}

var cjkStopwords = map[string]struct{}{
	"这个": {}, "那个": {}, "因为": {}, "所以": {}, "但是": {}, "如果": {}, "可以": {}, "我们": {}, "他们": {}, "没有": {},
}

var cjkNounSweep = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,5}`)

func (e *LocalFallbackEntityExtractor) Extract(ctx context.Context, text string) ([]kg.EntityMention, error) {
	var mentions []kg.EntityMention
	seen := make(map[string]struct{})

	add := func(name, typ string, start, end int) {
		key := fmt.Sprintf("%s|%d|%d", name, start, end)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		mentions = append(mentions, kg.EntityMention{
			ID:       uuid.NewString(),
			Name:     name,
			Type:     SanitizeLabel(typ),
			StartPos: start,
			EndPos:   end,
		})
	}

	applyPatterns := func(patterns []entityPattern) {
		for _, p := range patterns {
			for _, loc := range p.re.FindAllStringIndex(text, -1) {
				name := strings.TrimSpace(text[loc[0]:loc[1]])
				if name == "" {
					continue
				}
				typ := p.typ
				if typ == "Person_candidate" {
					typ = "Person"
				}
				start := len([]rune(text[:loc[0]]))
				end := start + len([]rune(name))
				add(name, typ, start, end)
			}
		}
	}

	applyPatterns(corePatterns)

	if e.ForceExtend || len(mentions) == 0 {
		applyPatterns(extendedPatterns)

		for _, loc := range cjkNounSweep.FindAllStringIndex(text, -1) {
			name := text[loc[0]:loc[1]]
			if _, stop := cjkStopwords[name]; stop {
				continue
			}
			start := len([]rune(text[:loc[0]]))
			end := start + len([]rune(name))
			add(name, "Concept", start, end)
		}
	}

	return mentions, nil
}
