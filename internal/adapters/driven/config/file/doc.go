// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based key/value settings storage
//   - PromptStore: user-editable LLM prompt templates
//   - LoadPipelineConfig: the [pipeline] table plus ARCHIVIST_ overrides
package file
