// Package metrics exports evaluation error rates in the Prometheus text
// format, for pickup by a node exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/ieee0824/hiereval/evaluation"
	"github.com/prometheus/client_golang/prometheus"
)

// Exporter writes the gauges of completed runs to a file. It implements
// evaluation.ResultSink.
type Exporter struct {
	path string
	reg  *prometheus.Registry

	subset *prometheus.GaugeVec
	mean   *prometheus.GaugeVec
	epoch  *prometheus.GaugeVec
}

// NewExporter creates an exporter writing to path.
func NewExporter(path string) *Exporter {
	e := &Exporter{
		path: path,
		reg:  prometheus.NewRegistry(),
		subset: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hiereval_subset_error_rate",
				Help: "Error rate in percent of one evaluation subset",
			},
			[]string{"corpus", "subset", "metric", "task", "mode"},
		),
		mean: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hiereval_mean_error_rate",
				Help: "Mean error rate in percent over the evaluation subsets",
			},
			[]string{"corpus", "metric", "task", "mode"},
		),
		epoch: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hiereval_checkpoint_epoch",
				Help: "Epoch of the evaluated checkpoint",
			},
			[]string{"corpus", "mode"},
		),
	}
	e.reg.MustRegister(e.subset, e.mean, e.epoch)
	return e
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.reg }

// Record sets the gauges of a run and rewrites the file.
func (e *Exporter) Record(rc *evaluation.RunContext, rep *evaluation.Report) error {
	corpus, mode := string(rc.Corpus), string(rep.Mode)
	for _, sr := range rep.Subsets {
		e.subset.WithLabelValues(corpus, sr.DataType, "wer", rep.Task, mode).Set(sr.WER)
		if rep.HasCER {
			e.subset.WithLabelValues(corpus, sr.DataType, "cer", rep.Task, mode).Set(sr.CER)
		}
	}
	e.mean.WithLabelValues(corpus, "wer", rep.Task, mode).Set(rep.Summary.MeanWER)
	if rep.HasCER {
		e.mean.WithLabelValues(corpus, "cer", rep.Task, mode).Set(rep.Summary.MeanCER)
	}
	e.epoch.WithLabelValues(corpus, mode).Set(float64(rep.Epoch))

	if err := prometheus.WriteToTextfile(e.path, e.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
