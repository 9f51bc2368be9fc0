// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// EditorConfig is the editor's user configuration, loaded from a
// JSONC file (JSON with comments and trailing commas, so the file
// stays hand-editable).
type EditorConfig struct {
	// Theme selects the palette: "dark" (default) or "light".
	Theme string `json:"theme"`

	// DefaultZoom is the zoom level on startup, clamped to the
	// renderer's range.
	DefaultZoom float64 `json:"defaultZoom"`

	// FPS overrides the playback frame rate when the video's
	// metadata does not declare one.
	FPS float64 `json:"fps"`
}

// DefaultEditorConfig returns the built-in defaults.
func DefaultEditorConfig() EditorConfig {
	return EditorConfig{
		Theme:       "dark",
		DefaultZoom: ZoomMin,
		FPS:         30,
	}
}

// LoadEditorConfig reads a JSONC config file over the defaults.
// A missing file is not an error: the defaults apply.
func LoadEditorConfig(path string) (EditorConfig, error) {
	config := DefaultEditorConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("timeline: reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
		return config, fmt.Errorf("timeline: parsing config %s: %w", path, err)
	}
	if config.DefaultZoom == 0 {
		config.DefaultZoom = ZoomMin
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	return config, nil
}
