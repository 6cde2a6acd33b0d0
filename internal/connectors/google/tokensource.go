package google

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// maxCredentialsSize bounds the key file read.
const maxCredentialsSize = 64 * 1024

// NewTokenSource returns an oauth2.TokenSource for the Drive scope.
// A non-empty credentialsFile is read as a service-account (or authorised
// user) JSON key; otherwise application default credentials are used.
func NewTokenSource(ctx context.Context, credentialsFile string) (oauth2.TokenSource, error) {
	if credentialsFile == "" {
		creds, err := googleoauth.FindDefaultCredentials(ctx, drive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("find default credentials: %w", err)
		}
		return creds.TokenSource, nil
	}

	info, err := os.Stat(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	if info.Size() > maxCredentialsSize {
		return nil, fmt.Errorf("credentials file %s is too large", credentialsFile)
	}
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	creds, err := googleoauth.CredentialsFromJSON(ctx, data, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	return creds.TokenSource, nil
}
