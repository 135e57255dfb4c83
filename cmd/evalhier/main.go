package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ieee0824/hiereval"
	"github.com/ieee0824/hiereval/decodelen"
	"github.com/ieee0824/hiereval/internal/config"
	"github.com/ieee0824/hiereval/logx"
	"github.com/ieee0824/hiereval/metrics"
	"github.com/ieee0824/hiereval/results"
	"github.com/ieee0824/hiereval/scoring"
)

func main() {
	var cfg config.EvalConfig
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()
	logx.Configure(cfg.LogLevel)

	if err := run(cfg); err != nil {
		logx.Log.Error().Err(err).Msg("evaluation failed")
		os.Exit(1)
	}
}

func run(cfg config.EvalConfig) error {
	if err := cfg.Validate(); err != nil {
		flag.Usage()
		return err
	}
	if _, err := decodelen.ParseCorpus(cfg.Corpus); err != nil {
		return err
	}

	logFile, err := logx.AddFile(cfg.ModelPath)
	if err != nil {
		logx.Log.Warn().Err(err).Msg("decode log disabled")
	} else {
		defer logFile.Close()
	}

	opts := []hiereval.Option{hiereval.WithLogger(logx.Log)}
	if cfg.ResultsDB != "" {
		store, err := results.NewStore(cfg.ResultsDB)
		if err != nil {
			return fmt.Errorf("open results db: %w", err)
		}
		defer store.Close()
		opts = append(opts, hiereval.WithSink(store))
	}
	if cfg.MetricsFile != "" {
		opts = append(opts, hiereval.WithSink(metrics.NewExporter(cfg.MetricsFile)))
	}

	rep, err := hiereval.NewEvaluator(opts...).Evaluate(cfg.Params())
	if err != nil {
		return err
	}

	tag := ""
	if rep.Mode == scoring.Oracle {
		tag = "[oracle] "
	}
	for _, s := range rep.Subsets {
		if rep.HasCER {
			fmt.Printf("%sWER / CER (%s, sub): %.3f / %.3f %%\n", tag, s.DataType, s.WER, s.CER)
		} else {
			fmt.Printf("%sWER (%s, main): %.3f %%\n", tag, s.DataType, s.WER)
		}
	}
	if rep.HasCER {
		fmt.Printf("%sWER / CER (mean, sub): %.3f / %.3f %%\n", tag, rep.Summary.MeanWER, rep.Summary.MeanCER)
	} else {
		fmt.Printf("%sWER (mean, main): %.3f %%\n", tag, rep.Summary.MeanWER)
	}
	return nil
}
