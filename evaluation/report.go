package evaluation

import "github.com/ieee0824/hiereval/scoring"

// Accumulator sums per-subset error rates.
type Accumulator struct {
	WERSum float64
	CERSum float64
	Count  int
}

// Add records one subset.
func (a *Accumulator) Add(wer, cer float64) {
	a.WERSum += wer
	a.CERSum += cer
	a.Count++
}

// Mean returns the arithmetic mean WER and CER. Zero subsets yield zeros.
func (a Accumulator) Mean() (wer, cer float64) {
	if a.Count == 0 {
		return 0, 0
	}
	n := float64(a.Count)
	return a.WERSum / n, a.CERSum / n
}

// SubsetResult is the outcome of one evaluation subset.
type SubsetResult struct {
	DataType   string
	WER        float64
	CER        float64
	Utterances []UtteranceResult
}

// Summary is the mean over all subsets of a run.
type Summary struct {
	MeanWER float64
	MeanCER float64
	Subsets int
}

// Report is the result of a complete run.
type Report struct {
	RunID string
	// Task is "main" for word scoring and "sub" for sub task scoring.
	Task string
	// HasCER is set when CER was measured (sub task scoring).
	HasCER  bool
	Mode    scoring.Mode
	Epoch   int
	Subsets []SubsetResult
	Summary Summary
}
