package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// maxFolderDepth bounds the upward walk in case a store reports a cycle.
const maxFolderDepth = 64

// ProjectFromPath derives project fields from the folder that sits directly
// under the intake root on the way up from folderID. Fields stay empty when
// no intake root is found or the file lives in the intake root itself.
func ProjectFromPath(ctx context.Context, store driven.DocumentStore, folderID string, cfg domain.PipelineConfig) (domain.Project, error) {
	folder, err := store.GetFolder(ctx, folderID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("get folder %s: %w", folderID, err)
	}

	var below *domain.Folder
	for depth := 0; folder != nil && depth < maxFolderDepth; depth++ {
		if strings.EqualFold(strings.TrimSpace(folder.Name), cfg.IntakeRootName) {
			if below == nil {
				return domain.Project{}, nil
			}
			return ParseProjectFolder(below.Name, cfg.FolderDelimiter), nil
		}
		parent, err := store.GetParent(ctx, folder.ID)
		if err != nil {
			return domain.Project{}, fmt.Errorf("get parent of %s: %w", folder.Name, err)
		}
		below, folder = folder, parent
	}
	return domain.Project{}, nil
}

// ParseProjectFolder splits a "location-customer" folder name.
// Two parts give location and customer, three parts give a two-token
// location and a customer, anything else is all location.
func ParseProjectFolder(name, delimiter string) domain.Project {
	name = strings.TrimSpace(name)
	p := domain.Project{ProjectName: name, Location: name}
	if delimiter == "" {
		return p
	}

	var parts []string
	for _, part := range strings.Split(name, delimiter) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}

	switch len(parts) {
	case 2:
		p.Location, p.Customer = parts[0], parts[1]
	case 3:
		p.Location, p.Customer = parts[0]+" "+parts[1], parts[2]
	}
	return p
}
