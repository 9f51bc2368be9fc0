// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// boxline-editor is the interactive timeline editor for box
// sequences. It loads one annotation from a Boxline store, opens the
// keyframe timeline in the terminal, and writes edits back on save.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/annolab/boxline/lib/ingest"
	"github.com/annolab/boxline/lib/sequence"
	"github.com/annolab/boxline/lib/store"
	"github.com/annolab/boxline/lib/timeline"
	"github.com/annolab/boxline/lib/version"
	"github.com/annolab/boxline/lib/videometa"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var dbPath string
	var annotationID string
	var configPath string
	var themeFlag string

	flagSet := pflag.NewFlagSet("boxline-editor", pflag.ContinueOnError)
	flagSet.StringVar(&dbPath, "db", "boxline.db", "path to the annotation store")
	flagSet.StringVar(&annotationID, "annotation", "", "annotation id to edit (required)")
	flagSet.StringVar(&configPath, "config", defaultConfigPath(), "editor config file (JSONC)")
	flagSet.StringVar(&themeFlag, "theme", "", "theme override: dark, light, or auto")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("boxline-editor")
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if annotationID == "" {
		return fmt.Errorf("--annotation is required")
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("boxline-editor needs an interactive terminal")
	}

	config, err := timeline.LoadEditorConfig(configPath)
	if err != nil {
		return err
	}
	switch themeFlag {
	case "":
	case "auto":
		config.Theme = "dark"
		if !termenv.HasDarkBackground() {
			config.Theme = "light"
		}
	default:
		config.Theme = themeFlag
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	st, err := store.Open(store.Config{Path: dbPath, Logger: logger})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	record, err := st.FindUnique(ctx, store.KindAnnotation, annotationID)
	if err != nil {
		return fmt.Errorf("loading annotation %s: %w", annotationID, err)
	}
	payload, err := ingest.DecodeAnnotation(record.Data)
	if err != nil {
		return fmt.Errorf("annotation %s: %w", annotationID, err)
	}
	if payload.Sequence == nil || len(payload.Sequence.Boxes) == 0 {
		return fmt.Errorf("annotation %s has no keyframes", annotationID)
	}

	meta := lookupMeta(ctx, st, payload.VideoID)
	totalFrames := payload.Sequence.TotalFrames
	if meta != nil && meta.TotalFrames() > 0 {
		totalFrames = meta.TotalFrames()
	}

	model, err := timeline.NewModel(timeline.ModelConfig{
		Title:       annotationID,
		Sequence:    payload.Sequence,
		Meta:        meta,
		TotalFrames: totalFrames,
		Config:      config,
		OnSave: func(s *sequence.Sequence) error {
			payload.Sequence = s
			data, err := ingest.EncodeAnnotation(record.Data, payload)
			if err != nil {
				return err
			}
			return st.Update(ctx, &store.Record{ID: record.ID, Kind: record.Kind, Data: data})
		},
	})
	if err != nil {
		return err
	}

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion())
	_, err = program.Run()
	return err
}

// lookupMeta reads frame dimensions from the referenced video
// record. An absent or malformed record just disables the checks
// and preview scaling that need it.
func lookupMeta(ctx context.Context, st store.Store, videoID string) *videometa.Meta {
	if videoID == "" {
		return nil
	}
	meta, err := store.NewMetaProvider(st).VideoMeta(ctx, videoID)
	if err != nil {
		return nil
	}
	return &meta
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "editor.jsonc"
	}
	return filepath.Join(home, ".config", "boxline", "editor.jsonc")
}
