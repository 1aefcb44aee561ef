// predict runs a one-shot prediction over an event log and writes the
// operator table as CSV, optionally narrowed to one day and line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/failcast/internal/classifier"
	"github.com/chrissnell/failcast/internal/export"
	"github.com/chrissnell/failcast/internal/features"
	"github.com/chrissnell/failcast/internal/ingest"
	"github.com/chrissnell/failcast/internal/log"
	"github.com/chrissnell/failcast/internal/predict"
	"github.com/chrissnell/failcast/internal/storage"
	"github.com/chrissnell/failcast/pkg/config"
)

func main() {
	var (
		cfgFile = flag.String("config", "failcast.yaml", "Path to YAML configuration file")
		input   = flag.String("in", "", "Event log CSV to predict on")
		output  = flag.String("out", "predictions.csv", "Prediction CSV to write")
		day     = flag.String("day", "", "Only write predictions for this day (YYYY-MM-DD)")
		line    = flag.String("line", "", "Only write predictions for this line")
		store   = flag.Bool("store", false, "Save the batch to the configured prediction store")
		debug   = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if *input == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -config <failcast.yaml> -in <events.csv> [-out predictions.csv] [-day YYYY-MM-DD] [-line L]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filename, _ := filepath.Abs(*cfgFile)
	cfg, err := config.NewYAMLProvider(filename).LoadConfig()
	if err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}

	var filter predict.Filter
	if *day != "" {
		d, ok := features.ParseDay(*day, features.DefaultDayLayout)
		if !ok {
			log.Fatalf("invalid -day %q", *day)
		}
		filter.Day = d
	}
	filter.Line = *line

	model, err := classifier.New(cfg.Model)
	if err != nil {
		log.Fatalf("error loading classifier: %v", err)
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("error opening event log: %v", err)
	}
	raw, err := ingest.NewCSVReader(cfg.Input).Read(f)
	f.Close()
	if err != nil {
		log.Fatalf("error reading event log: %v", err)
	}

	ctx := context.Background()
	logger := log.GetSugaredLogger()

	batch, err := predict.NewService(cfg, model, logger).Run(ctx, raw)
	if err != nil {
		log.Fatalf("prediction failed: %v", err)
	}

	if *store {
		s, err := storage.New(ctx, cfg.Storage, logger)
		if err != nil {
			log.Fatalf("error opening prediction store: %v", err)
		}
		if err := s.SaveBatch(ctx, batch); err != nil {
			s.Close()
			log.Fatalf("error storing batch: %v", err)
		}
		s.Close()
	}

	preds := filter.Apply(batch.Predictions)
	predict.SortByRisk(preds)

	out, err := os.Create(*output)
	if err != nil {
		log.Fatalf("error creating output: %v", err)
	}
	if err := export.WritePredictions(out, preds); err != nil {
		out.Close()
		log.Fatalf("error writing predictions: %v", err)
	}
	if err := out.Close(); err != nil {
		log.Fatalf("error closing output: %v", err)
	}

	sum := predict.Summarize(preds)
	log.Infof("batch %s: %d predicted failures across %d stations (%d rows written to %s)",
		batch.ID, sum.PredictedFailures, len(sum.StationsAtRisk), sum.Rows, *output)
}
