// derive-features reads a station event log and writes it back with the
// rolling failure statistics appended. No model is needed.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chrissnell/failcast/internal/export"
	"github.com/chrissnell/failcast/internal/features"
	"github.com/chrissnell/failcast/internal/ingest"
	"github.com/chrissnell/failcast/internal/log"
	"github.com/chrissnell/failcast/pkg/config"
)

func main() {
	var (
		input     = flag.String("in", "-", "Event log CSV to read (- for stdin)")
		output    = flag.String("out", "-", "Feature CSV to write (- for stdout)")
		delimiter = flag.String("delimiter", ",", "Input field delimiter")
		dayLayout = flag.String("day-layout", features.DefaultDayLayout, "Go time layout of the day column")
		keepDups  = flag.Bool("keep-duplicates", false, "Do not collapse multiple events of one station on one day")
		workers   = flag.Int("workers", 1, "Number of stations derived concurrently")
		debug     = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	in, err := openInput(*input)
	if err != nil {
		log.Fatalf("error opening input: %v", err)
	}
	defer in.Close()

	raw, err := ingest.NewCSVReader(config.InputData{Delimiter: *delimiter}).Read(in)
	if err != nil {
		log.Fatalf("error reading event log: %v", err)
	}

	events, err := features.ParseEvents(raw, *dayLayout)
	if err != nil {
		log.Fatalf("error parsing event log: %v", err)
	}
	if !*keepDups {
		events = features.Aggregate(events)
	}

	records, err := features.NewDeriver(*workers).Derive(events)
	if err != nil {
		log.Fatalf("error deriving features: %v", err)
	}

	out, err := openOutput(*output)
	if err != nil {
		log.Fatalf("error opening output: %v", err)
	}
	if err := export.WriteFeatures(out, records); err != nil {
		log.Fatalf("error writing features: %v", err)
	}
	if err := out.Close(); err != nil {
		log.Fatalf("error closing output: %v", err)
	}

	log.Infow("derived features", "rows", len(records))
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
