// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - DocumentStore: The hierarchical tree holding sources and sidecars
//   - OCRService: Recognises text in images and scanned PDFs
//   - SpreadsheetReader: Reads tabular documents
//   - ConfigStore: Application configuration
//   - SchedulerStore: Scheduler state for the daemon
//
// # Optional Interfaces
//
// These can be nil - the pipeline degrades gracefully:
//
//   - ConversionService: Without it, word documents go straight to OCR.
//   - Normaliser: Direct text reads. Without one, the OCR stage handles the kind.
//   - LLMService: Without it, metadata generation is disabled.
//   - LanguageDetector: Without it, textData.language is "unknown".
//   - MetricsRecorder: Without it, batch counts are only logged.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
