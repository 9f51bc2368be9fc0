// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package videometa describes the video a sequence annotates, as far
// as validation and playback need to know: frame dimensions for
// boundary checks, frame rate and duration for playback timing. The
// provider is an interface because metadata may come from a probe, a
// store record, or a fixture; when no provider is available, boundary
// checks are skipped rather than failed.
package videometa

import "context"

// Meta holds the video properties used for validation and playback.
// Width and Height are required when Meta is supplied at all; FPS and
// Duration are optional refinements (zero means unknown).
type Meta struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// TotalFrames derives the frame count from FPS and Duration, or 0
// when either is unknown.
func (m Meta) TotalFrames() int {
	if m.FPS <= 0 || m.Duration <= 0 {
		return 0
	}
	return int(m.FPS * m.Duration)
}

// Provider resolves metadata for a video id. Implementations may hit
// a store or a probe; absence of metadata is an error from the
// provider, and callers decide whether that is fatal.
type Provider interface {
	VideoMeta(ctx context.Context, videoID string) (Meta, error)
}

// Static is a Provider over a fixed map, for tests and offline use.
type Static map[string]Meta

func (s Static) VideoMeta(_ context.Context, videoID string) (Meta, error) {
	if m, ok := s[videoID]; ok {
		return m, nil
	}
	return Meta{}, &NotFoundError{VideoID: videoID}
}

// NotFoundError reports a video id with no known metadata.
type NotFoundError struct {
	VideoID string
}

func (e *NotFoundError) Error() string {
	return "videometa: no metadata for video " + e.VideoID
}
