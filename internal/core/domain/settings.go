package domain

const unknownDescription = "Unknown"

// AIProvider identifies an LLM service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if the provider runs on the local machine.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// StoreBackend selects the document store implementation.
type StoreBackend string

// Available store backends.
const (
	// BackendDrive is Google Drive.
	BackendDrive StoreBackend = "drive"

	// BackendLocal is a directory tree on the local filesystem.
	BackendLocal StoreBackend = "local"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	return b == BackendDrive || b == BackendLocal
}

// Description returns a human-readable description of the backend.
func (b StoreBackend) Description() string {
	switch b {
	case BackendDrive:
		return "Google Drive"
	case BackendLocal:
		return "Local filesystem"
	default:
		return unknownDescription
	}
}

// StoreSettings holds document store configuration.
type StoreSettings struct {
	// Backend selects the store implementation.
	Backend StoreBackend

	// CredentialsFile is a service-account JSON key (drive backend).
	// Empty means application default credentials.
	CredentialsFile string

	// LocalRoot is the directory the local backend resolves IDs against.
	LocalRoot string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Store holds document store settings.
	Store StoreSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The LLM is left unconfigured; metadata generation is disabled until it is set.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM: LLMSettings{},
		Store: StoreSettings{
			Backend: BackendDrive,
		},
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4.1-nano",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
	}
}
