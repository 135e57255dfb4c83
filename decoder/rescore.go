// Package decoder rescores the hypotheses a hierarchical model produced and
// picks the output of each utterance.
package decoder

import (
	"sort"
	"strings"

	"github.com/ieee0824/hiereval/fusion"
	"github.com/ieee0824/hiereval/internal/mathutil"
	"github.com/ieee0824/hiereval/model"
	"github.com/ieee0824/hiereval/scoring"
	"github.com/ieee0824/hiereval/wer"
)

// candidate is a hypothesis with its rescored total.
type candidate struct {
	tokens []string
	score  float64
}

// beam rescores hyps for one task and returns the survivors, best first.
//
// The top BeamWidth hypotheses by network score are kept. Each gets
// score + lp*len + cp*coverage + lmWeight*LM. Candidates outside the length
// envelope of encLen are dropped; if none remain, the best one is truncated
// to the maximum length and returned alone.
func beam(hyps []model.Hypothesis, p scoring.LevelOptions, lm fusion.LanguageModel, encLen int) []candidate {
	if len(hyps) == 0 {
		return nil
	}
	sorted := make([]model.Hypothesis, len(hyps))
	copy(sorted, hyps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if p.BeamWidth > 0 && len(sorted) > p.BeamWidth {
		sorted = sorted[:p.BeamWidth]
	}

	cands := make([]candidate, len(sorted))
	for i, h := range sorted {
		c := candidate{tokens: h.Tokens}
		c.score = h.Score + p.LengthPenalty*float64(len(h.Tokens)) + p.CoveragePenalty*h.Coverage
		if lm != nil && p.LMWeight > 0 {
			c.score += p.LMWeight * lm.SentenceLogProb(h.Tokens)
		}
		cands[i] = c
	}
	sortCandidates(cands)

	minLen, maxLen := p.Envelope.Envelope(encLen)
	var kept []candidate
	for _, c := range cands {
		if n := len(c.tokens); n >= minLen && n <= maxLen {
			kept = append(kept, c)
		}
	}
	if len(kept) > 0 {
		return kept
	}
	best := cands[0]
	if len(best.tokens) > maxLen {
		best.tokens = best.tokens[:maxLen]
	}
	return []candidate{best}
}

// joint adds w times the sub task score to every main candidate. The sub
// score of a candidate is the log-sum of the sub candidates whose character
// rendering equals the candidate's words joined by the word boundary. A
// candidate without a match gets the lowest sub score in the beam.
func joint(main, sub []candidate, w float64) []candidate {
	if w == 0 || len(sub) == 0 || len(main) == 0 {
		return main
	}
	floor := sub[0].score
	bySurface := make(map[string][]float64)
	for _, s := range sub {
		floor = min(floor, s.score)
		key := strings.Join(s.tokens, "")
		bySurface[key] = append(bySurface[key], s.score)
	}

	out := make([]candidate, len(main))
	for i, c := range main {
		subScore := floor
		if scores, ok := bySurface[strings.Join(c.tokens, wer.WordBoundary)]; ok {
			subScore = mathutil.LogSumExp(scores...)
		}
		c.score = scoring.Combine(c.score, subScore, w)
		out[i] = c
	}
	sortCandidates(out)
	return out
}

// resolveUnk replaces unknown words with the word at the same position in
// the sub task output. Nothing changes when the word counts differ.
func resolveUnk(words []string, subSurface, unk string) []string {
	subWords := wer.Words(subSurface)
	if len(subWords) != len(words) {
		return words
	}
	out := make([]string, len(words))
	for i, w := range words {
		if w == unk {
			w = subWords[i]
		}
		out[i] = w
	}
	return out
}

// pool merges the lists of an ensemble. Identical candidates get the mean
// score and coverage of the models that produced them.
func pool(lists [][]model.Hypothesis) []model.Hypothesis {
	if len(lists) == 1 {
		return lists[0]
	}
	type acc struct {
		hyp model.Hypothesis
		n   int
	}
	var order []string
	seen := make(map[string]*acc)
	for _, list := range lists {
		for _, h := range list {
			key := strings.Join(h.Tokens, "\x00")
			a, ok := seen[key]
			if !ok {
				seen[key] = &acc{hyp: h, n: 1}
				order = append(order, key)
				continue
			}
			a.hyp.Score += h.Score
			a.hyp.Coverage += h.Coverage
			a.n++
		}
	}
	out := make([]model.Hypothesis, 0, len(order))
	for _, k := range order {
		a := seen[k]
		h := a.hyp
		h.Score /= float64(a.n)
		h.Coverage /= float64(a.n)
		out = append(out, h)
	}
	return out
}

func sortCandidates(c []candidate) {
	sort.SliceStable(c, func(i, j int) bool { return c[i].score > c[j].score })
}

// encoderLen is the number of encoder steps after subsampling.
func encoderLen(inputLen, factor int) int {
	if factor <= 1 {
		return inputLen
	}
	return (inputLen + factor - 1) / factor
}
