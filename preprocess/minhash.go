package preprocess

import (
	"crypto/md5"
	"math/big"
	"strings"
)

// minHashPermutations is K, the number of (a, b) permutation pairs.
const minHashPermutations = 128

// minHashModulus is p in (a·h+b) mod p.
var minHashModulus = big.NewInt(1_000_000_000_000_000_000) // 10^18

// defaultMinHashThreshold is the similarity at or above which two texts are
// considered duplicates.
const defaultMinHashThreshold = 0.7

type minHashPerm struct {
	a, b int64
}

// MinHashDeduper deduplicates texts by MinHash signature similarity: K
// stable permutations are drawn once at construction time, and two texts
// are duplicates when the fraction of signature positions where their
// minimum hashes agree is at least Threshold.
type MinHashDeduper struct {
	perms     []minHashPerm
	Threshold float64
}

// NewMinHashDeduper builds a deduper with K permutations drawn from seed, so
// that two deduper instances built from the same seed produce identical
// signatures. Threshold defaults to 0.7 when 0 is passed.
func NewMinHashDeduper(seed int64, threshold float64) *MinHashDeduper {
	if threshold <= 0 {
		threshold = defaultMinHashThreshold
	}
	rng := newSplitMix64(uint64(seed))
	perms := make([]minHashPerm, minHashPermutations)
	for i := range perms {
		perms[i] = minHashPerm{
			a: int64(rng.next()%1_000_000) + 1,
			b: int64(rng.next() % 1_000_001),
		}
	}
	return &MinHashDeduper{perms: perms, Threshold: threshold}
}

func (d *MinHashDeduper) Process(text string) string { return Normalize(text) }

func (d *MinHashDeduper) Dedupe(texts []string) []string {
	if len(texts) == 0 {
		return nil
	}

	signatures := make([][]int64, len(texts))
	for i, t := range texts {
		signatures[i] = d.signature(t)
	}

	var unique []string
	var kept [][]int64
	for i, sig := range signatures {
		duplicate := false
		for _, k := range kept {
			if jaccardFromSignatures(sig, k) >= d.Threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, texts[i])
			kept = append(kept, sig)
		}
	}
	return unique
}

// signature computes the MinHash signature of text over the deduper's fixed
// permutations.
func (d *MinHashDeduper) signature(text string) []int64 {
	words := uniqueTokens(text)
	sig := make([]int64, len(d.perms))
	if len(words) == 0 {
		return sig
	}

	hashes := make([]*big.Int, len(words))
	for i, w := range words {
		h := md5.Sum([]byte(w))
		hashes[i] = new(big.Int).Mod(new(big.Int).SetBytes(h[:]), minHashModulus)
	}

	for i, perm := range d.perms {
		var min *big.Int
		a := big.NewInt(perm.a)
		b := big.NewInt(perm.b)
		for _, h := range hashes {
			v := new(big.Int).Mod(new(big.Int).Add(new(big.Int).Mul(a, h), b), minHashModulus)
			if min == nil || v.Cmp(min) < 0 {
				min = v
			}
		}
		sig[i] = min.Int64()
	}
	return sig
}

func uniqueTokens(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range strings.Fields(text) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func jaccardFromSignatures(a, b []int64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

// splitMix64 is a small deterministic PRNG used so permutation generation
// needs no external dependency and is reproducible from an integer seed.
type splitMix64 struct{ state uint64 }

func newSplitMix64(seed uint64) *splitMix64 { return &splitMix64{state: seed} }

func (s *splitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
