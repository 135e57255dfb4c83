package language

import (
	"strings"

	"github.com/ieee0824/hiereval/internal/mathutil"
)

// Sentence boundary tokens.
const (
	BOS = "<s>"
	EOS = "</s>"
	UNK = "<unk>"
)

// NGramModel is a backoff n-gram language model over label tokens.
// Scores are natural-log probabilities.
type NGramModel struct {
	Order  int
	grams  map[string]ngramEntry // tokens joined by keySep
	counts []int                 // entries per order, index 0 = unigrams
}

type ngramEntry struct {
	LogProb    float64
	LogBackoff float64
}

const keySep = "\x00"

// NewNGramModel creates an empty n-gram model.
func NewNGramModel(order int) *NGramModel {
	return &NGramModel{
		Order:  order,
		grams:  make(map[string]ngramEntry),
		counts: make([]int, order),
	}
}

func (m *NGramModel) set(tokens []string, e ngramEntry) {
	n := len(tokens)
	if n > m.Order {
		m.Order = n
	}
	for len(m.counts) < n {
		m.counts = append(m.counts, 0)
	}
	key := strings.Join(tokens, keySep)
	if _, ok := m.grams[key]; !ok {
		m.counts[n-1]++
	}
	m.grams[key] = e
}

func (m *NGramModel) lookup(tokens []string) (ngramEntry, bool) {
	e, ok := m.grams[strings.Join(tokens, keySep)]
	return e, ok
}

// Count returns the number of n-grams of the given order.
func (m *NGramModel) Count(order int) int {
	if order < 1 || order > len(m.counts) {
		return 0
	}
	return m.counts[order-1]
}

// LogProb returns log P(token | history) with Katz-style backoff.
// Only the last Order-1 history tokens are used. Tokens missing from the
// unigram table fall back to <unk> when the model has one.
func (m *NGramModel) LogProb(history []string, token string) float64 {
	if n := m.Order - 1; len(history) > n {
		history = history[len(history)-n:]
	}
	backoff := 0.0
	for {
		ctx := append(append([]string(nil), history...), token)
		if e, ok := m.lookup(ctx); ok {
			return backoff + e.LogProb
		}
		if len(history) == 0 {
			if e, ok := m.lookup([]string{UNK}); ok {
				return backoff + e.LogProb
			}
			return mathutil.LogZero
		}
		if e, ok := m.lookup(history); ok {
			backoff += e.LogBackoff
		}
		history = history[1:]
	}
}

// SentenceLogProb scores a token sequence wrapped in <s> ... </s>.
func (m *NGramModel) SentenceLogProb(tokens []string) float64 {
	total := 0.0
	history := []string{BOS}
	for _, t := range tokens {
		total += m.LogProb(history, t)
		history = append(history, t)
	}
	return total + m.LogProb(history, EOS)
}
