// Package main implements the fraudlake-verify tool.
// It checks the warehouse consistency invariants and optionally sweeps
// superseded view artifacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/fraudlake/fraudlake/internal/app"
	"github.com/fraudlake/fraudlake/internal/config"
)

func main() {
	var (
		configFile string
		dataDir    string
		sweep      bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.BoolVar(&sweep, "sweep", false, "Delete superseded view artifacts before verifying")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fraudlake-verify [options]\n\n")
		fmt.Fprintf(os.Stderr, "Exits non-zero when any check fails.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if dataDir != "" {
		cfg.SetDataDir(dataDir)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if sweep {
		deleted, err := a.Verifier.Sweep(ctx)
		if err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		fmt.Printf("Swept %d superseded view artifacts\n", len(deleted))
	}

	report := a.Verifier.Run(ctx)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Check", "Status", "Detail"})
	table.SetAutoFormatHeaders(false)
	for _, check := range report.Checks {
		status := "ok"
		if !check.Passed {
			status = "FAILED"
		}
		table.Append([]string{check.Name, status, check.Detail})
	}
	table.Render()

	if !report.Passed() {
		os.Exit(1)
	}
	fmt.Println("All checks passed")
}
