// Package normalisers provides the direct-read text extractors and the
// registry that selects one by MIME type. Each normaliser knows how to
// read text straight out of a specific document format.
//
// Normalisers are registered with the Registry at startup.
package normalisers
