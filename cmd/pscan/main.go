// Command pscan runs the pointer-graph analysis pipeline over a directory
// of per-batch CSV snapshots and prints the discovered findings, one per
// line, to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"pscan/internal/catalog"
	"pscan/internal/events"
	"pscan/internal/ingest"
	"pscan/internal/orchestrator"
	"pscan/internal/ptrcore"
	"pscan/internal/runconfig"
)

func main() {
	system := flag.String("system", "", "System tag from the catalogue (e.g. ps2, ngc, wii, ps3, generic32)")
	batchDir := flag.String("batch_dir", "", "Directory of per-batch CSV files (addr,value per line)")
	targets := flag.String("targets", "", "Comma-separated list of injected target addresses (hex or decimal)")
	dotenv := flag.String("env_file", "", "Optional .env file with runtime configuration overrides")
	iniFile := flag.String("systems_ini", "", "Optional INI file of additional/overriding system definitions")
	quiet := flag.Bool("quiet", false, "Suppress structured log output, print only findings")

	flag.Parse()

	if *system == "" {
		fmt.Println("pscan: Error: missing system tag on -system option")
		os.Exit(1)
	}
	if *batchDir == "" {
		fmt.Println("pscan: Error: missing batch directory on -batch_dir option")
		os.Exit(1)
	}

	if err := run(*system, *batchDir, *targets, *dotenv, *iniFile, *quiet); err != nil {
		fmt.Printf("pscan: Error: %v\n", err)
		os.Exit(1)
	}
}

func run(systemTag, batchDir, targetsCSV, dotenvPath, iniPath string, quiet bool) error {
	cat, err := catalog.NewBuiltin()
	if err != nil {
		return fmt.Errorf("loading built-in catalogue: %w", err)
	}
	if iniPath != "" {
		f, err := os.Open(iniPath)
		if err != nil {
			return fmt.Errorf("opening systems ini: %w", err)
		}
		defer f.Close()
		overrides, err := catalog.LoadOverridesINI(f)
		if err != nil {
			return fmt.Errorf("parsing systems ini: %w", err)
		}
		if err := cat.RegisterAll(overrides); err != nil {
			return fmt.Errorf("registering ini overrides: %w", err)
		}
	}
	sys, ok := cat.Lookup(systemTag)
	if !ok {
		return fmt.Errorf("unknown system %q", systemTag)
	}

	cfg, err := runconfig.LoadEnv(dotenvPath)
	if err != nil {
		return fmt.Errorf("loading runtime configuration: %w", err)
	}

	targetAddrs, err := parseTargetList(targetsCSV)
	if err != nil {
		return fmt.Errorf("parsing -targets: %w", err)
	}

	batches, err := loadBatchDir(batchDir, sys)
	if err != nil {
		return fmt.Errorf("loading batch directory: %w", err)
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if quiet {
		log = log.Level(zerolog.Disabled)
	}

	o := orchestrator.New(ingest.TextEncoder{})
	o.AttachSink(events.NewZerologSink(log))

	result, err := o.Run(context.Background(), sys, cfg, batches, targetAddrs)
	if err != nil {
		return err
	}

	for _, line := range result.Lines {
		fmt.Println(line)
	}
	return nil
}

func parseTargetList(s string) ([]ptrcore.Address, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []ptrcore.Address
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.ParseUint(field, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", field, err)
		}
		out = append(out, ptrcore.Address(n))
	}
	return out, nil
}

// loadBatchDir reads every *.csv file in dir, one batch per file, ordered
// by filename so batch ordering is reproducible across runs.
func loadBatchDir(dir string, sys *catalog.System) ([]ptrcore.Batch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var batches []ptrcore.Batch
	for _, name := range names {
		b, _, err := ingest.ParseCSVBatchFile(filepath.Join(dir, name), sys)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		batches = append(batches, ptrcore.Batch{Addresses: b.Addresses, Values: b.Values})
	}
	return batches, nil
}
