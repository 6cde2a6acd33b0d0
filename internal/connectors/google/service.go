package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// NewDriveService creates a Google Drive API service using the provided TokenSource.
// Extra options are appended, so callers (and tests) may override the endpoint.
func NewDriveService(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*drive.Service, error) {
	all := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}
