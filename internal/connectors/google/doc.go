// Package google provides shared infrastructure for the Google Drive backend.
//
// It contains:
//   - Credential loading (service-account key file or application default
//     credentials) and the Drive service factory
//   - Error mapping for common Google API errors (401, 403, 404, 429)
//   - Rate limiting to respect Drive quotas
//
// # Usage
//
//	ts, err := google.NewTokenSource(ctx, credentialsFile)
//	svc, err := google.NewDriveService(ctx, ts)
//
// # OAuth2 Scopes
//
// The Drive backend needs https://www.googleapis.com/auth/drive: it creates
// sidecars, copies into the archive tree and trashes moved sources. Service
// accounts must be granted access to the shared folders they process.
package google
