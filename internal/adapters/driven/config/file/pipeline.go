package file

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// EnvPrefix marks environment variables that override config.toml.
// A double underscore separates table levels:
//
//	ARCHIVIST_PIPELINE__ROOT_FOLDER_ID   -> pipeline.root_folder_id
//	ARCHIVIST_PIPELINE__CONVERSION__DELAY -> pipeline.conversion.delay
const EnvPrefix = "ARCHIVIST_"

const maxConfigFileSize = 1024 * 1024

// tomlParser adapts go-toml to koanf.Parser.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	var out map[string]any
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	return toml.Marshal(m)
}

// envKey maps ARCHIVIST_PIPELINE__PAGE_SIZE to pipeline.page_size.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// LoadPipelineConfig reads the [pipeline] table of the TOML file at path,
// applies environment overrides and validates the result. Keys that are
// absent keep their defaults. A missing file is not an error.
func LoadPipelineConfig(path string) (domain.PipelineConfig, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return domain.PipelineConfig{}, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), tomlParser{}); err != nil {
				return domain.PipelineConfig{}, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return domain.PipelineConfig{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := domain.DefaultPipelineConfig()
	if err := k.Unmarshal("pipeline", &cfg); err != nil {
		return domain.PipelineConfig{}, fmt.Errorf("failed to unmarshal pipeline config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return domain.PipelineConfig{}, err
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%w: config file %s exceeds %d bytes", domain.ErrInvalidInput, path, maxConfigFileSize)
	}
	return os.ReadFile(path)
}
