package decoder

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ieee0824/hiereval/dataset"
	"github.com/ieee0824/hiereval/decodelen"
	"github.com/ieee0824/hiereval/device"
	"github.com/ieee0824/hiereval/evaluation"
	"github.com/ieee0824/hiereval/fusion"
	"github.com/ieee0824/hiereval/language"
	"github.com/ieee0824/hiereval/model"
	"github.com/ieee0824/hiereval/modelconf"
	"github.com/ieee0824/hiereval/scoring"
	"github.com/ieee0824/hiereval/wer"
	"github.com/rs/zerolog"
)

// Source is a model that can serve hypotheses.
type Source interface {
	Config() modelconf.Config
	NBest(dataType string) (map[string]*model.NBest, error)
	LM(task fusion.Task) fusion.LanguageModel
}

// Utterances is a subset that lists its rows.
type Utterances interface {
	Name() string
	Utterances() []dataset.Utterance
}

// Decoder rescores model hypotheses and computes error rates. It
// implements evaluation.Decoder.
type Decoder struct {
	log zerolog.Logger
	unk string
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Decoder) {
		d.log = l
	}
}

// WithUnk sets the unknown word token.
func WithUnk(tok string) Option {
	return func(d *Decoder) {
		d.unk = tok
	}
}

// New creates a Decoder.
func New(opts ...Option) *Decoder {
	d := &Decoder{log: zerolog.Nop(), unk: language.UNK}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// utterance output of either task.
type output struct {
	row    evaluation.UtteranceResult
	counts [2]wer.Counter // word, char
}

// EvalWord decodes the main task and returns the WER.
func (d *Decoder) EvalWord(models []evaluation.Model, ds evaluation.Dataset, opts scoring.Options) (evaluation.WordReport, error) {
	outs, err := d.run(models, ds, func(srcs []Source, u dataset.Utterance, lists []*model.NBest) output {
		return d.word(srcs, u, lists, opts)
	})
	if err != nil {
		return evaluation.WordReport{}, err
	}
	var c wer.Counter
	rep := evaluation.WordReport{Utterances: make([]evaluation.UtteranceResult, len(outs))}
	for i, o := range outs {
		c.Add(o.counts[0].Errors, o.counts[0].RefLen)
		rep.Utterances[i] = o.row
	}
	rep.WER = c.Rate()
	return rep, nil
}

// EvalChar decodes the sub task and returns WER and CER. At phone level
// both rates are the phone error rate.
func (d *Decoder) EvalChar(models []evaluation.Model, ds evaluation.Dataset, opts scoring.Options) (evaluation.CharReport, error) {
	outs, err := d.run(models, ds, func(srcs []Source, u dataset.Utterance, lists []*model.NBest) output {
		return d.char(srcs, u, lists, opts)
	})
	if err != nil {
		return evaluation.CharReport{}, err
	}
	var cw, cc wer.Counter
	rep := evaluation.CharReport{Utterances: make([]evaluation.UtteranceResult, len(outs))}
	for i, o := range outs {
		cw.Add(o.counts[0].Errors, o.counts[0].RefLen)
		cc.Add(o.counts[1].Errors, o.counts[1].RefLen)
		rep.Utterances[i] = o.row
	}
	rep.WER, rep.CER = cw.Rate(), cc.Rate()
	return rep, nil
}

type decodeFunc func(srcs []Source, u dataset.Utterance, lists []*model.NBest) output

// run decodes every utterance of ds. Utterances are spread over the
// workers of the first model's device; results keep manifest order.
func (d *Decoder) run(models []evaluation.Model, ds evaluation.Dataset, decode decodeFunc) ([]output, error) {
	if len(models) == 0 {
		return nil, errors.New("no models")
	}
	set, ok := ds.(Utterances)
	if !ok {
		return nil, fmt.Errorf("dataset %T does not list utterances", ds)
	}
	srcs := make([]Source, len(models))
	nbest := make([]map[string]*model.NBest, len(models))
	for i, m := range models {
		src, ok := m.(Source)
		if !ok {
			return nil, fmt.Errorf("model %T does not serve hypotheses", m)
		}
		lists, err := src.NBest(set.Name())
		if err != nil {
			return nil, err
		}
		srcs[i], nbest[i] = src, lists
	}

	utts := set.Utterances()
	for _, u := range utts {
		for i := range nbest {
			if nbest[i][u.ID] == nil {
				return nil, fmt.Errorf("no hypotheses for utterance %q", u.ID)
			}
		}
	}

	workers := 1
	if dev, ok := models[0].(interface{ Device() (device.Info, bool) }); ok {
		if info, claimed := dev.Device(); claimed {
			workers = info.Workers()
		}
	}
	workers = max(1, min(workers, len(utts)))

	outs := make([]output, len(utts))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lists := make([]*model.NBest, len(nbest))
			for i := range jobs {
				u := utts[i]
				for k := range nbest {
					lists[k] = nbest[k][u.ID]
				}
				outs[i] = decode(srcs, u, lists)
			}
		}()
	}
	for i := range utts {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	d.log.Debug().Str("subset", set.Name()).Int("utterances", len(utts)).Int("workers", workers).Msg("decoded")
	return outs, nil
}

func (d *Decoder) word(srcs []Source, u dataset.Utterance, lists []*model.NBest, opts scoring.Options) output {
	cfg := srcs[0].Config()
	mainLists := make([][]model.Hypothesis, len(lists))
	subLists := make([][]model.Hypothesis, len(lists))
	for i, nb := range lists {
		mainLists[i], subLists[i] = nb.Main, nb.Sub
	}

	cands := beam(pool(mainLists), opts.Primary, srcs[0].LM(fusion.Main), encoderLen(u.InputLen, factor(cfg, false)))

	var subSurface string
	if opts.Aux != nil {
		subCands := beam(pool(subLists), *opts.Aux, srcs[0].LM(fusion.Sub), encoderLen(u.InputLen, factor(cfg, true)))
		if opts.JointDecoding {
			cands = joint(cands, subCands, opts.Weight())
		}
		switch {
		case opts.A2COracle:
			subSurface = u.RefSub
		case len(subCands) > 0:
			subSurface = strings.Join(subCands[0].tokens, "")
		}
	}

	var words []string
	if len(cands) > 0 {
		words = cands[0].tokens
	}
	if opts.ResolvingUnk && subSurface != "" {
		words = resolveUnk(words, subSurface, d.unk)
	}

	hyp := strings.Join(words, " ")
	ref := wer.Words(u.RefMain)
	dist := wer.Distance(ref, words)
	o := output{row: evaluation.UtteranceResult{ID: u.ID, Ref: u.RefMain, Hyp: hyp, Errors: dist, RefLen: len(ref)}}
	o.counts[0].Add(dist, len(ref))
	return o
}

func (d *Decoder) char(srcs []Source, u dataset.Utterance, lists []*model.NBest, opts scoring.Options) output {
	cfg := srcs[0].Config()
	subLists := make([][]model.Hypothesis, len(lists))
	for i, nb := range lists {
		subLists[i] = nb.Sub
	}
	cands := beam(pool(subLists), opts.Primary, srcs[0].LM(fusion.Sub), encoderLen(u.InputLen, factor(cfg, true)))
	var tokens []string
	if len(cands) > 0 {
		tokens = cands[0].tokens
	}

	o := output{row: evaluation.UtteranceResult{ID: u.ID, Ref: u.RefSub}}
	if opts.Primary.Level == decodelen.Phone {
		ref := strings.Fields(u.RefSub)
		dist := wer.Distance(ref, tokens)
		o.row.Hyp = strings.Join(tokens, " ")
		o.row.Errors, o.row.RefLen = dist, len(ref)
		o.counts[0].Add(dist, len(ref))
		o.counts[1].Add(dist, len(ref))
		return o
	}

	hyp := strings.Join(tokens, "")
	refWords, hypWords := wer.Words(u.RefSub), wer.Words(hyp)
	wd := wer.Distance(refWords, hypWords)
	refChars := wer.Chars(u.RefSub)
	cd := wer.Distance(refChars, wer.Chars(hyp))
	o.row.Hyp = hyp
	o.row.Errors, o.row.RefLen = cd, len(refChars)
	o.counts[0].Add(wd, len(refWords))
	o.counts[1].Add(cd, len(refChars))
	return o
}

func factor(cfg modelconf.Config, sub bool) int {
	if cfg.Modality() == modelconf.InputText {
		return 1
	}
	if sub {
		return cfg.SubsamplingFactorSub()
	}
	return cfg.SubsamplingFactor()
}
