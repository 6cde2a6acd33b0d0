package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/logger"
)

// PairingIndex answers the two discovery queries by walking the store.
// Grouping is per folder; sidecar existence is the only progress signal.
type PairingIndex struct {
	store driven.DocumentStore
}

// NewPairingIndex creates a pairing index over a store.
func NewPairingIndex(store driven.DocumentStore) *PairingIndex {
	return &PairingIndex{store: store}
}

// baseGroup collects the files of one folder sharing a base name.
type baseGroup struct {
	members []domain.File
	hasText bool
}

// FindSourcesNeedingText returns every source document whose base-name
// group has no text sidecar. Sidecars (.txt, .json) are never candidates.
func (p *PairingIndex) FindSourcesNeedingText(ctx context.Context, rootID string) ([]domain.File, error) {
	var out []domain.File
	err := p.walk(ctx, rootID, func(files []domain.File) {
		groups := make(map[string]*baseGroup)
		var order []string
		for _, f := range files {
			base := f.BaseName()
			g, ok := groups[base]
			if !ok {
				g = &baseGroup{}
				groups[base] = g
				order = append(order, base)
			}
			if f.Extension() == domain.TextSidecarExt {
				g.hasText = true
			}
			g.members = append(g.members, f)
		}
		for _, base := range order {
			g := groups[base]
			if g.hasText {
				continue
			}
			for _, f := range g.members {
				if isSidecar(f) {
					continue
				}
				out = append(out, f)
			}
		}
	})
	return out, err
}

// FindTextArtifactsNeedingMetadata returns every text sidecar whose folder
// has no matching metadata sidecar.
func (p *PairingIndex) FindTextArtifactsNeedingMetadata(ctx context.Context, rootID string) ([]domain.File, error) {
	var out []domain.File
	err := p.walk(ctx, rootID, func(files []domain.File) {
		names := make(map[string]struct{}, len(files))
		for _, f := range files {
			names[f.Name] = struct{}{}
		}
		for _, f := range files {
			if f.Extension() != domain.TextSidecarExt {
				continue
			}
			if _, ok := names[domain.MetadataSidecarName(f.BaseName())]; ok {
				continue
			}
			out = append(out, f)
		}
	})
	return out, err
}

// walk lists every folder once, depth first. A listing failure below the
// root is logged and that subtree skipped; failure at the root is returned.
func (p *PairingIndex) walk(ctx context.Context, rootID string, visit func([]domain.File)) error {
	files, err := p.store.ListFiles(ctx, rootID)
	if err != nil {
		return fmt.Errorf("list files in %s: %w", rootID, err)
	}
	folders, err := p.store.ListFolders(ctx, rootID)
	if err != nil {
		return fmt.Errorf("list folders in %s: %w", rootID, err)
	}
	visit(files)

	for _, sub := range folders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.walk(ctx, sub.ID, visit); err != nil {
			logger.Warn("discovery: skipping folder %s: %v", sub.Name, err)
		}
	}
	return nil
}

func isSidecar(f domain.File) bool {
	ext := f.Extension()
	return ext == domain.TextSidecarExt || ext == "json" || domain.IsMetadataSidecar(f.Name)
}
