package extract

import (
	"context"
	"testing"

	"github.com/brunobiangulo/kgraph/kg"
)

func TestSanitizeLabel(t *testing.T) {
	got := SanitizeLabel(`Org/Name:With*Bad?Chars<>|`)
	for _, bad := range []string{"/", ":", "*", "?", "<", ">", "|"} {
		if containsRune(got, bad) {
			t.Errorf("SanitizeLabel left %q in result %q", bad, got)
		}
	}
}

func containsRune(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestExtractJSONStripsCodeFence(t *testing.T) {
	in := "```json\n[{\"name\":\"百度公司\"}]\n```"
	got := ExtractJSON(in)
	want := `[{"name":"百度公司"}]`
	if got != want {
		t.Errorf("ExtractJSON() = %q, want %q", got, want)
	}
}

func TestExtractJSONFindsOutermostBraces(t *testing.T) {
	in := "here is the answer: {\"a\":1} thanks"
	got := ExtractJSON(in)
	if got != `{"a":1}` {
		t.Errorf("ExtractJSON() = %q, want object", got)
	}
}

func TestResolvePositionsExact(t *testing.T) {
	text := "百度公司于2023年推出文心一言"
	runes := []rune(text)
	start, end, ok := resolvePositions(runes, "百度公司", 0, 4)
	if !ok || start != 0 || end != 4 {
		t.Errorf("resolvePositions exact = (%d,%d,%v), want (0,4,true)", start, end, ok)
	}
}

func TestResolvePositionsOffByFewCorrected(t *testing.T) {
	text := "百度公司于2023年推出文心一言"
	runes := []rune(text)
	// Off by 1 from the true position of "文心一言" (runes 12..16).
	start, end, ok := resolvePositions(runes, "文心一言", 13, 17)
	if !ok {
		t.Fatal("expected correction to succeed")
	}
	got := string(runes[start:end])
	if got != "文心一言" {
		t.Errorf("corrected span = %q, want %q", got, "文心一言")
	}
}

func TestLocalFallbackEntityExtractorFindsOrganization(t *testing.T) {
	e := NewLocalFallbackEntityExtractor(false)
	mentions, err := e.Extract(context.Background(), "百度公司于2023年推出文心一言。")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	found := false
	for _, m := range mentions {
		if m.Name == "百度公司" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 百度公司 among mentions, got %+v", mentions)
	}
}

func TestRuleRelationExtractorLeadershipPattern(t *testing.T) {
	entities := []kg.AlignedEntity{
		{ID: "e1", Name: "王海峰", Type: "Person"},
		{ID: "e2", Name: "百度研究院", Type: "Organization"},
	}
	e := NewRuleRelationExtractor()
	triples, err := e.Extract(context.Background(), "王海峰领导百度研究院。", entities)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	found := false
	for _, tr := range triples {
		if tr.HeadID == "e1" && tr.TailID == "e2" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected triple e1->e2 among %+v", triples)
	}
}

func TestCascadingEntityExtractorFallsBackOnError(t *testing.T) {
	c := &CascadingEntityExtractor{
		Primary:  failingEntityExtractor{},
		Fallback: NewLocalFallbackEntityExtractor(false),
	}
	mentions, err := c.Extract(context.Background(), "百度公司于2023年推出文心一言。")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(mentions) == 0 {
		t.Error("expected fallback to produce mentions")
	}
}

type failingEntityExtractor struct{}

func (failingEntityExtractor) Extract(ctx context.Context, text string) ([]kg.EntityMention, error) {
	return nil, errTest
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
