package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyStoreBackend     = "store.backend"
	keyStoreCredentials = "store.credentials_file"
	keyStoreLocalRoot   = "store.local_root"
	keySchedulerEnabled = "scheduler.enabled"
)

// defaultOllamaURL is used when Ollama is selected without a base URL.
const defaultOllamaURL = "http://localhost:11434"

// schedulerTaskKeys maps task IDs to their TOML table names.
var schedulerTaskKeys = map[string]string{
	domain.TaskIDTextExtraction:     "text_extraction",
	domain.TaskIDMetadataGeneration: "metadata_generation",
	domain.TaskIDArchive:            "archive",
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Store: domain.StoreSettings{
			Backend:         s.getBackend(defaults.Store.Backend),
			CredentialsFile: s.configStore.GetString(keyStoreCredentials),
			LocalRoot:       s.configStore.GetString(keyStoreLocalRoot),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := s.configStore.Set(keyLLMProvider, settings.LLM.Provider.String()); err != nil {
		return fmt.Errorf("save llm provider: %w", err)
	}
	if err := s.configStore.Set(keyLLMModel, settings.LLM.Model); err != nil {
		return fmt.Errorf("save llm model: %w", err)
	}
	if err := s.configStore.Set(keyLLMBaseURL, settings.LLM.BaseURL); err != nil {
		return fmt.Errorf("save llm base_url: %w", err)
	}
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	if err := s.configStore.Set(keyStoreBackend, string(settings.Store.Backend)); err != nil {
		return fmt.Errorf("save store backend: %w", err)
	}
	if err := s.configStore.Set(keyStoreCredentials, settings.Store.CredentialsFile); err != nil {
		return fmt.Errorf("save store credentials_file: %w", err)
	}
	if err := s.configStore.Set(keyStoreLocalRoot, settings.Store.LocalRoot); err != nil {
		return fmt.Errorf("save store local_root: %w", err)
	}

	return nil
}

// SetLLMProvider configures the LLM used for metadata generation.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		// Cloud providers don't need a custom base URL
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetStoreBackend selects the document store.
func (s *SettingsService) SetStoreBackend(backend domain.StoreBackend) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: invalid store backend: %s", domain.ErrInvalidInput, backend)
	}
	return s.configStore.Set(keyStoreBackend, string(backend))
}

// Validate checks that the stored settings can build a pipeline.
// An unconfigured LLM is valid; only a half-configured one is not.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Store.Backend.IsValid() {
		return fmt.Errorf("%w: invalid store backend: %s", domain.ErrInvalidInput, settings.Store.Backend)
	}
	if settings.Store.Backend == domain.BackendLocal && settings.Store.LocalRoot == "" {
		return fmt.Errorf("%w: the local backend requires store.local_root", domain.ErrInvalidInput)
	}

	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider %q is not fully configured",
			domain.ErrInvalidInput, settings.LLM.Provider.Description())
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	defaults := domain.DefaultSchedulerConfig()

	// Master switch
	if _, exists := s.configStore.Get(keySchedulerEnabled); exists {
		defaults.Enabled = s.configStore.GetBool(keySchedulerEnabled)
	}

	for taskID, configKey := range schedulerTaskKeys {
		prefix := "scheduler." + configKey + "."

		taskCfg := defaults.TaskConfigs[taskID]

		if _, exists := s.configStore.Get(prefix + "enabled"); exists {
			taskCfg.Enabled = s.configStore.GetBool(prefix + "enabled")
		}

		// Interval is a duration string like "45m" or "168h".
		if interval := s.configStore.GetString(prefix + "interval"); interval != "" {
			if d, err := time.ParseDuration(interval); err == nil && d > 0 {
				taskCfg.Interval = d
			}
		}

		defaults.TaskConfigs[taskID] = taskCfg
	}

	return defaults
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StoreBackend) domain.StoreBackend {
	backend := domain.StoreBackend(s.configStore.GetString(keyStoreBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
