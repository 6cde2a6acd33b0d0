package drive

import "github.com/custodia-labs/archivist/internal/core/domain"

// Export formats for store-native files.
const (
	ExportMimeText = "text/plain"
	ExportMimeXlsx = domain.MimeXlsx
)

// Config holds Drive backend settings.
type Config struct {
	// PageSize is the page size for list requests.
	PageSize int64

	// MaxDownloadSize bounds ReadContent and exported bodies.
	MaxDownloadSize int64

	// ScratchFolderID is where OCR and conversion documents are created.
	// Empty means the service account's root.
	ScratchFolderID string

	// SharedDrives enables shared-drive items in every request.
	SharedDrives bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:        100,
		MaxDownloadSize: 100 * 1024 * 1024,
		SharedDrives:    true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.MaxDownloadSize <= 0 {
		c.MaxDownloadSize = d.MaxDownloadSize
	}
	return c
}
