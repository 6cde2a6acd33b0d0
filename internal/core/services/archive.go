package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/core/ports/driving"
	"github.com/custodia-labs/archivist/internal/logger"
)

// Ensure ArchiveService implements the interface.
var _ driving.Archival = (*ArchiveService)(nil)

// ArchiveService mirrors the working tree into the archive tree and moves
// allow-listed files across, deleting a source only after a verified copy.
type ArchiveService struct {
	store driven.DocumentStore
}

// NewArchiveService creates an archive service.
func NewArchiveService(store driven.DocumentStore) *ArchiveService {
	return &ArchiveService{store: store}
}

// Run mirrors then moves. The destination may sit inside the source tree;
// its subtree is never walked.
func (s *ArchiveService) Run(ctx context.Context, cfg domain.PipelineConfig) (domain.ArchiveReport, error) {
	var report domain.ArchiveReport
	if err := cfg.Validate(); err != nil {
		return report, err
	}
	src, dst := cfg.ArchiveSource(), cfg.Archive.DestFolderID
	if src == "" || dst == "" {
		return report, fmt.Errorf("%w: archive source and destination must be configured", domain.ErrInvalidInput)
	}
	if src == dst {
		return report, fmt.Errorf("%w: archive source and destination are the same folder", domain.ErrInvalidInput)
	}
	dest, err := s.store.GetFolder(ctx, dst)
	if err != nil {
		return report, fmt.Errorf("get archive destination: %w", err)
	}
	dst = dest.ID

	logger.Section("Archive")
	if err := s.mirror(ctx, src, dst, dst, &report); err != nil {
		return report, err
	}
	if err := s.move(ctx, cfg, src, dst, dst, &report); err != nil {
		return report, err
	}

	logger.Info("archive: copied %d (%s), skipped %d, failed %d, created %d folders",
		report.Copied, humanize.IBytes(uint64(report.BytesMoved)), report.Skipped, report.Failed, report.FoldersCreated)
	return report, nil
}

// Mirror reproduces every folder under srcID beneath dstID, creating only
// those that are missing. Listing the root is the only fatal failure.
func (s *ArchiveService) Mirror(ctx context.Context, srcID, dstID string, report *domain.ArchiveReport) error {
	return s.mirror(ctx, srcID, dstID, dstID, report)
}

// mirror walks srcID, never descending into the archive root.
func (s *ArchiveService) mirror(ctx context.Context, srcID, dstID, archiveID string, report *domain.ArchiveReport) error {
	folders, err := s.store.ListFolders(ctx, srcID)
	if err != nil {
		return fmt.Errorf("list folders in %s: %w", srcID, err)
	}
	for _, sub := range folders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sub.ID == archiveID {
			continue
		}
		dest, err := s.ensureFolder(ctx, dstID, sub.Name, report)
		if err != nil {
			logger.Warn("archive: mirror %s: %v", sub.Name, err)
			continue
		}
		if err := s.mirror(ctx, sub.ID, dest.ID, archiveID, report); err != nil {
			logger.Warn("archive: mirror below %s: %v", sub.Name, err)
		}
	}
	return nil
}

// Move copies allow-listed files from srcID to the mirrored folder under
// dstID and soft-deletes each source once its copy is verified. Files that
// already exist at the destination are left alone on both sides.
func (s *ArchiveService) Move(ctx context.Context, cfg domain.PipelineConfig, srcID, dstID string, report *domain.ArchiveReport) error {
	return s.move(ctx, cfg, srcID, dstID, dstID, report)
}

func (s *ArchiveService) move(ctx context.Context, cfg domain.PipelineConfig, srcID, dstID, archiveID string, report *domain.ArchiveReport) error {
	files, err := s.store.ListFiles(ctx, srcID)
	if err != nil {
		return fmt.Errorf("list files in %s: %w", srcID, err)
	}

	var complete map[string]bool
	if cfg.Archive.RequireMetadata {
		complete = completeGroups(files)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !archivable(f, cfg.Archive.AllowedExtensions) {
			logger.Debug("archive: %s not archivable", f.Name)
			report.Skipped++
			continue
		}
		if complete != nil && !complete[f.BaseName()] {
			logger.Debug("archive: %s has no metadata yet", f.Name)
			report.Skipped++
			continue
		}
		s.moveFile(ctx, f, dstID, report)
	}

	folders, err := s.store.ListFolders(ctx, srcID)
	if err != nil {
		return fmt.Errorf("list folders in %s: %w", srcID, err)
	}
	for _, sub := range folders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sub.ID == archiveID {
			continue
		}
		dest, err := s.ensureFolder(ctx, dstID, sub.Name, report)
		if err != nil {
			logger.Warn("archive: %s: %v", sub.Name, err)
			report.Failed++
			continue
		}
		if err := s.move(ctx, cfg, sub.ID, dest.ID, archiveID, report); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Warn("archive: %s: %v", sub.Name, err)
		}
	}
	return nil
}

// moveFile copies one file and trashes the source after a size check.
// Failures are counted, never returned.
func (s *ArchiveService) moveFile(ctx context.Context, f domain.File, dstID string, report *domain.ArchiveReport) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("archive: %s: panic: %v", f.Name, r)
			report.Failed++
		}
	}()

	existing, err := s.store.FindByName(ctx, dstID, f.Name)
	if err != nil {
		logger.Error("archive: check %s: %v", f.Name, err)
		report.Failed++
		return
	}
	if existing != nil {
		logger.Info("archive: %s already archived, keeping source", f.Name)
		report.Skipped++
		return
	}

	copied, err := s.store.CopyFile(ctx, f, f.Name, dstID)
	if err != nil {
		logger.Error("archive: copy %s: %v", f.Name, err)
		report.Failed++
		return
	}
	if copied.Size != f.Size {
		logger.Error("archive: %s copy is %s, source is %s; keeping source",
			f.Name, humanize.IBytes(uint64(copied.Size)), humanize.IBytes(uint64(f.Size)))
		report.Failed++
		return
	}
	if err := s.store.SoftDelete(ctx, f); err != nil {
		logger.Error("archive: trash %s: %v", f.Name, err)
		report.Failed++
		return
	}

	report.Copied++
	report.BytesMoved += f.Size
	logger.Debug("archive: moved %s (%s)", f.Name, humanize.IBytes(uint64(f.Size)))
}

func (s *ArchiveService) ensureFolder(ctx context.Context, parentID, name string, report *domain.ArchiveReport) (*domain.Folder, error) {
	existing, err := s.store.FindFolderByName(ctx, parentID, name)
	if err != nil {
		return nil, fmt.Errorf("find folder: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	created, err := s.store.CreateFolder(ctx, parentID, name)
	if err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	report.FoldersCreated++
	logger.Info("archive: created folder %s", name)
	return created, nil
}

func archivable(f domain.File, allowed []string) bool {
	if strings.Contains(f.MimeType, domain.NativeMimeMarker) {
		return false
	}
	name := strings.ToLower(f.Name)
	for _, ext := range allowed {
		if strings.HasSuffix(name, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// completeGroups returns the base names whose group has a metadata sidecar.
// The sidecars themselves belong to the group of their source.
func completeGroups(files []domain.File) map[string]bool {
	out := make(map[string]bool)
	for _, f := range files {
		if domain.IsMetadataSidecar(f.Name) {
			base := strings.TrimSuffix(f.Name, domain.MetadataSidecarSuffix)
			out[base] = true
			out[f.BaseName()] = true
		}
	}
	return out
}
