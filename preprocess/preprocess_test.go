package preprocess

import "testing"

func TestSimHashIdenticalTextsMatch(t *testing.T) {
	a := SimHash("百度公司 于 2023年 推出 文心一言")
	b := SimHash("百度公司 于 2023年 推出 文心一言")
	if hammingDistance(a, b) != 0 {
		t.Errorf("expected identical texts to have zero Hamming distance")
	}
}

func TestSimHashDedupeKeepsFirstOccurrence(t *testing.T) {
	d := NewSimHashDeduper(3)
	t1 := "百度公司 于 2023年 推出 文心一言"
	t2 := "百度公司 于 2023年 推出 文心一言 助手" // near-duplicate, one extra token
	texts := []string{t1, t2, "完全不同的文本内容"}

	out := d.Dedupe(texts)
	if len(out) == 0 {
		t.Fatal("expected at least one text to survive dedup")
	}
	if out[0] != t1 {
		t.Errorf("expected first occurrence %q to be kept first, got %q", t1, out[0])
	}
}

func TestSimHashDedupeEmpty(t *testing.T) {
	d := NewSimHashDeduper(3)
	if out := d.Dedupe(nil); out != nil {
		t.Errorf("expected nil for empty input, got %v", out)
	}
}

func TestMinHashSignatureDeterministic(t *testing.T) {
	d1 := NewMinHashDeduper(42, 0.7)
	d2 := NewMinHashDeduper(42, 0.7)

	sig1 := d1.signature("百度公司 推出 文心一言")
	sig2 := d2.signature("百度公司 推出 文心一言")

	if len(sig1) != len(sig2) {
		t.Fatalf("signature length mismatch: %d vs %d", len(sig1), len(sig2))
	}
	for i := range sig1 {
		if sig1[i] != sig2[i] {
			t.Fatalf("signatures diverge at position %d with same seed", i)
		}
	}
}

func TestMinHashDedupeIdenticalTexts(t *testing.T) {
	d := NewMinHashDeduper(7, 0.7)
	texts := []string{"百度公司 推出 文心一言", "百度公司 推出 文心一言", "完全不同的文本内容"}

	out := d.Dedupe(texts)
	if len(out) != 2 {
		t.Fatalf("expected 2 unique texts, got %d: %v", len(out), out)
	}
}

func TestSimHashDefaultThreshold(t *testing.T) {
	d := NewSimHashDeduper(0)
	if d.hammingThreshold != defaultHammingThreshold {
		t.Errorf("hammingThreshold = %v, want default %v", d.hammingThreshold, defaultHammingThreshold)
	}
}

func TestMinHashDefaultThreshold(t *testing.T) {
	d := NewMinHashDeduper(1, 0)
	if d.Threshold != defaultMinHashThreshold {
		t.Errorf("Threshold = %v, want default %v", d.Threshold, defaultMinHashThreshold)
	}
}
