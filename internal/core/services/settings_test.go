package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archivist/internal/adapters/driven/config/file"
	"github.com/custodia-labs/archivist/internal/core/domain"
)

func newConfigStore(t *testing.T) *file.ConfigStore {
	t.Helper()
	store, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewSettingsService(t *testing.T) {
	store := newConfigStore(t)
	service := NewSettingsService(store, nil)

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(newConfigStore(t), nil)

	settings, err := service.Get()

	require.NoError(t, err)
	require.NotNil(t, settings)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.LLM.Provider, settings.LLM.Provider)
	assert.Equal(t, defaults.LLM.Model, settings.LLM.Model)
	assert.Equal(t, domain.BackendDrive, settings.Store.Backend)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := newConfigStore(t)
	_ = store.Set("llm.provider", "openai")
	_ = store.Set("llm.model", "gpt-4.1-mini")
	_ = store.Set("llm.api_key", "sk-test")
	_ = store.Set("store.backend", "local")
	_ = store.Set("store.local_root", "/srv/docs")

	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.LLM.Provider)
	assert.Equal(t, "gpt-4.1-mini", settings.LLM.Model)
	assert.Equal(t, "sk-test", settings.LLM.APIKey)
	assert.Equal(t, domain.BackendLocal, settings.Store.Backend)
	assert.Equal(t, "/srv/docs", settings.Store.LocalRoot)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := newConfigStore(t)
	_ = store.Set("llm.provider", "invalid_provider")
	_ = store.Set("store.backend", "s3")

	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.LLM.Provider, settings.LLM.Provider)
	assert.Equal(t, defaults.Store.Backend, settings.Store.Backend)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	store := newConfigStore(t)
	service := NewSettingsService(store, nil)

	settings := &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider: domain.AIProviderAnthropic,
			Model:    "claude-3-5-haiku-latest",
			APIKey:   "key",
		},
		Store: domain.StoreSettings{
			Backend:         domain.BackendDrive,
			CredentialsFile: "/etc/archivist/sa.json",
		},
	}

	require.NoError(t, service.Save(settings))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, *settings, *got)
}

func TestSettingsService_Save_EmptyAPIKeyNotWritten(t *testing.T) {
	store := newConfigStore(t)
	_ = store.Set("llm.api_key", "existing")
	service := NewSettingsService(store, nil)

	require.NoError(t, service.Save(&domain.AppSettings{
		LLM:   domain.LLMSettings{Provider: domain.AIProviderOllama},
		Store: domain.StoreSettings{Backend: domain.BackendDrive},
	}))

	assert.Equal(t, "existing", store.GetString("llm.api_key"))
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	tests := []struct {
		name      string
		provider  domain.AIProvider
		model     string
		apiKey    string
		wantErr   bool
		wantModel string
		wantURL   string
	}{
		{
			name:      "ollama default model and URL",
			provider:  domain.AIProviderOllama,
			wantModel: "llama3.2",
			wantURL:   "http://localhost:11434",
		},
		{
			name:      "openai with explicit model",
			provider:  domain.AIProviderOpenAI,
			model:     "gpt-4.1",
			apiKey:    "sk",
			wantModel: "gpt-4.1",
		},
		{
			name:     "anthropic without key",
			provider: domain.AIProviderAnthropic,
			wantErr:  true,
		},
		{
			name:     "unknown provider",
			provider: domain.AIProvider("bogus"),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewSettingsService(newConfigStore(t), nil)

			err := service.SetLLMProvider(tt.provider, tt.model, tt.apiKey)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)

			settings, err := service.Get()
			require.NoError(t, err)
			assert.Equal(t, tt.provider, settings.LLM.Provider)
			assert.Equal(t, tt.wantModel, settings.LLM.Model)
			assert.Equal(t, tt.wantURL, settings.LLM.BaseURL)
		})
	}
}

type failingConfigStore struct {
	*file.ConfigStore
	failOn string
}

func (f *failingConfigStore) Set(key string, value any) error {
	if f.failOn == "" || key == f.failOn {
		return assert.AnError
	}
	return f.ConfigStore.Set(key, value)
}

func TestSettingsService_Save_Errors(t *testing.T) {
	for _, key := range []string{"llm.provider", "llm.model", "llm.base_url", "store.backend", "store.local_root"} {
		t.Run(key, func(t *testing.T) {
			store := &failingConfigStore{ConfigStore: newConfigStore(t), failOn: key}
			service := NewSettingsService(store, nil)

			err := service.Save(&domain.AppSettings{Store: domain.StoreSettings{Backend: domain.BackendLocal}})
			assert.ErrorIs(t, err, assert.AnError)
		})
	}
}

func TestSettingsService_SetStoreBackend(t *testing.T) {
	store := newConfigStore(t)
	service := NewSettingsService(store, nil)

	require.NoError(t, service.SetStoreBackend(domain.BackendLocal))
	assert.Equal(t, "local", store.GetString("store.backend"))

	assert.ErrorIs(t, service.SetStoreBackend("ftp"), domain.ErrInvalidInput)
}

func TestSettingsService_Validate(t *testing.T) {
	store := newConfigStore(t)
	service := NewSettingsService(store, nil)

	assert.NoError(t, service.Validate(), "defaults are valid")

	_ = store.Set("store.backend", "local")
	assert.ErrorIs(t, service.Validate(), domain.ErrInvalidInput)

	_ = store.Set("store.local_root", "/srv/docs")
	assert.NoError(t, service.Validate())

	_ = store.Set("llm.provider", "openai")
	assert.ErrorIs(t, service.Validate(), domain.ErrInvalidInput)

	_ = store.Set("llm.api_key", "sk")
	assert.NoError(t, service.Validate())
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service := NewSettingsService(newConfigStore(t), nil)

	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}

func TestSettingsService_GetSchedulerConfig(t *testing.T) {
	store := newConfigStore(t)
	_ = store.Set("scheduler.enabled", false)
	_ = store.Set("scheduler.archive.enabled", true)
	_ = store.Set("scheduler.archive.interval", "24h")
	_ = store.Set("scheduler.text_extraction.interval", "not-a-duration")
	service := NewSettingsService(store, nil)

	cfg := service.GetSchedulerConfig()

	assert.False(t, cfg.Enabled)
	archive := cfg.GetTaskConfig(domain.TaskIDArchive)
	assert.True(t, archive.Enabled)
	assert.Equal(t, 24*time.Hour, archive.Interval)
	assert.Equal(t, 15*time.Minute, cfg.GetTaskConfig(domain.TaskIDTextExtraction).Interval)
}

// Mock AIConfigValidator for testing
type mockAIConfigValidator struct {
	llmErr error
}

func (m *mockAIConfigValidator) ValidateLLM(_ *domain.LLMSettings) error {
	return m.llmErr
}

func TestSettingsService_ValidateLLMConfig_NilValidator(t *testing.T) {
	service := NewSettingsService(newConfigStore(t), nil)

	// With nil validator, should skip validation (no error)
	assert.NoError(t, service.ValidateLLMConfig())
}

func TestSettingsService_ValidateLLMConfig_Success(t *testing.T) {
	service := NewSettingsService(newConfigStore(t), &mockAIConfigValidator{})

	assert.NoError(t, service.ValidateLLMConfig())
}

func TestSettingsService_ValidateLLMConfig_Error(t *testing.T) {
	service := NewSettingsService(newConfigStore(t), &mockAIConfigValidator{llmErr: assert.AnError})

	assert.Error(t, service.ValidateLLMConfig())
}
