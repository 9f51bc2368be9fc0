// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/annolab/boxline/lib/videometa"
)

// MetaProvider resolves video metadata from stored video records. It
// satisfies videometa.Provider, so the import engine and the editor
// share one lookup path.
type MetaProvider struct {
	querier Querier
}

// NewMetaProvider returns a provider reading video records through q.
func NewMetaProvider(q Querier) *MetaProvider {
	return &MetaProvider{querier: q}
}

// VideoMeta decodes the dimensions from the video record's payload. A
// record without positive width and height counts as absent metadata.
func (p *MetaProvider) VideoMeta(ctx context.Context, videoID string) (videometa.Meta, error) {
	record, err := p.querier.FindUnique(ctx, KindVideo, videoID)
	if err != nil {
		return videometa.Meta{}, fmt.Errorf("store: video metadata %s: %w", videoID, err)
	}
	raw, err := json.Marshal(record.Data)
	if err != nil {
		return videometa.Meta{}, fmt.Errorf("store: video metadata %s: %w", videoID, err)
	}
	var meta videometa.Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return videometa.Meta{}, fmt.Errorf("store: video metadata %s: %w", videoID, err)
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return videometa.Meta{}, &videometa.NotFoundError{VideoID: videoID}
	}
	return meta, nil
}
