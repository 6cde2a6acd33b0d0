// Package connectors holds the remote document store integrations.
// Each connector implements driven.DocumentStore and, where the remote
// service can do it, driven.OCRService and driven.ConversionService.
//
// The Google Drive connector under google/drive is selected by the
// store.backend setting at startup.
package connectors
