package extract

import (
	"context"
	"log/slog"

	"github.com/brunobiangulo/kgraph/kg"
)

// CascadingEntityExtractor tries Primary first and falls back to Fallback
// when Primary errors or returns nothing — the shape used when the LLM
// strategy is configured but must degrade gracefully if the provider is
// unavailable or exhausts its retries.
type CascadingEntityExtractor struct {
	Primary  EntityExtractor
	Fallback EntityExtractor
}

func (c *CascadingEntityExtractor) Extract(ctx context.Context, text string) ([]kg.EntityMention, error) {
	if c.Primary != nil {
		mentions, err := c.Primary.Extract(ctx, text)
		if err == nil && len(mentions) > 0 {
			return mentions, nil
		}
		if err != nil {
			slog.Warn("entity extraction: primary strategy failed, falling back", "error", err)
		}
	}
	if c.Fallback == nil {
		return nil, nil
	}
	return c.Fallback.Extract(ctx, text)
}

// CascadingRelationExtractor mirrors CascadingEntityExtractor for relation
// extraction: LLM-backed first, rule-based fallback on failure or silence.
type CascadingRelationExtractor struct {
	Primary  RelationExtractor
	Fallback RelationExtractor
}

func (c *CascadingRelationExtractor) Extract(ctx context.Context, text string, entities []kg.AlignedEntity) ([]kg.Triple, error) {
	if c.Primary != nil {
		triples, err := c.Primary.Extract(ctx, text, entities)
		if err == nil && len(triples) > 0 {
			return triples, nil
		}
		if err != nil {
			slog.Warn("relation extraction: primary strategy failed, falling back", "error", err)
		}
	}
	if c.Fallback == nil {
		return nil, nil
	}
	return c.Fallback.Extract(ctx, text, entities)
}
