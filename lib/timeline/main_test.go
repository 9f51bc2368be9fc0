// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"os"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// TestMain pins the lipgloss color profile so renders carry color
// escapes even when the test output is not a TTY; the caching tests
// distinguish buffers that differ only by color.
func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.TrueColor)
	os.Exit(m.Run())
}
