// config-test loads a configuration and its classifier and reports whether
// the model schema can be met by the configured feature encoding.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/chrissnell/failcast/internal/classifier"
	"github.com/chrissnell/failcast/internal/encoding"
	"github.com/chrissnell/failcast/pkg/config"
)

func main() {
	yamlFile := flag.String("yaml", "", "Path to YAML configuration file")
	flag.Parse()

	if *yamlFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <failcast.yaml>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Test")
	fmt.Println("==================")

	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	cfg, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Configuration is valid")

	switch {
	case cfg.Storage.SQLite != nil:
		fmt.Printf("Storage: SQLite (%s)\n", cfg.Storage.SQLite.Path)
	case cfg.Storage.TimescaleDB != nil:
		fmt.Println("Storage: TimescaleDB")
	default:
		fmt.Println("Storage: in-memory")
	}
	if cfg.REST != nil {
		fmt.Printf("REST server: %s:%d (uploads up to %s)\n",
			cfg.REST.ListenAddr, cfg.REST.Port, humanize.IBytes(uint64(cfg.REST.MaxUploadBytes)))
	}

	model, err := classifier.New(cfg.Model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading classifier: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %s classifier with %d features\n", cfg.Model.Type, len(model.FeatureNames()))

	opts := encoding.DefaultOptions()
	if len(cfg.Features.Numeric) > 0 {
		opts.Numeric = cfg.Features.Numeric
	}
	if len(cfg.Features.Categorical) > 0 {
		opts.Categorical = cfg.Features.Categorical
	}

	numeric := make(map[string]bool, len(opts.Numeric))
	for _, n := range opts.Numeric {
		numeric[n] = true
	}

	var unreachable []string
	for _, name := range model.FeatureNames() {
		if numeric[name] {
			continue
		}
		oneHot := false
		for _, c := range opts.Categorical {
			if strings.HasPrefix(name, c+"_") {
				oneHot = true
				break
			}
		}
		if !oneHot {
			unreachable = append(unreachable, name)
		}
	}

	if len(unreachable) > 0 {
		fmt.Printf("✗ %d model features can never be produced and will always be zero:\n", len(unreachable))
		for _, name := range unreachable {
			fmt.Printf("  - %s\n", name)
		}
		os.Exit(1)
	}
	fmt.Println("✓ Every model feature is produced by the configured encoding")
}
