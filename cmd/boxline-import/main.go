// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// boxline-import loads an annotation batch (JSON Lines) into a
// Boxline store, resolving conflicts against the existing data per a
// YAML policy file. The import report is written to stdout as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/annolab/boxline/lib/ingest"
	"github.com/annolab/boxline/lib/store"
	"github.com/annolab/boxline/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var dbPath string
	var policyPath string
	var strict bool
	var noAtomic bool
	var verbose bool

	flagSet := pflag.NewFlagSet("boxline-import", pflag.ContinueOnError)
	flagSet.StringVar(&dbPath, "db", "boxline.db", "path to the annotation store")
	flagSet.StringVar(&policyPath, "policy", "", "conflict policy file (YAML); defaults apply when omitted")
	flagSet.BoolVar(&strict, "strict", false, "abort the whole batch on any fail-resolved conflict")
	flagSet.BoolVar(&noAtomic, "no-atomic", false, "apply lines best-effort instead of one transaction")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("boxline-import")
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	policy := ingest.DefaultPolicy()
	if policyPath != "" {
		var err error
		policy, err = ingest.LoadPolicy(policyPath)
		if err != nil {
			return err
		}
	}
	if strict {
		policy.StrictMode = true
	}
	if noAtomic {
		policy.Atomic = false
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st, err := store.Open(store.Config{Path: dbPath, Logger: logger})
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := ingest.New(ingest.Config{
		Store:  st,
		Meta:   store.NewMetaProvider(st),
		Policy: policy,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	var input io.Reader = os.Stdin
	if args := flagSet.Args(); len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}

	report, runErr := engine.Run(context.Background(), input)
	if report != nil {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	}
	if runErr != nil {
		if errors.Is(runErr, ingest.ErrAborted) {
			return fmt.Errorf("batch aborted: %w", runErr)
		}
		return runErr
	}
	return nil
}
