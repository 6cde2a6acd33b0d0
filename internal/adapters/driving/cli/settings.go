package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change the settings stored in config.toml: the LLM provider used
for metadata generation, the document store backend, pipeline options and the
scheduler intervals.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print one stored value",
	Long:  `Print a value from config.toml by its dotted key, e.g. pipeline.page_size.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store one value",
	Long: `Store a value in config.toml under its dotted key. Integers and booleans
are stored typed; everything else as a string. store.backend and llm.provider
are checked before they are written.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Interactively choose the LLM provider and model used for metadata generation.`,
	RunE:  runSettingsLLM,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func requireSettings() (*Services, error) {
	svc, err := requireServices()
	if err != nil {
		return nil, err
	}
	if svc.Settings == nil {
		return nil, errors.New("settings service not configured")
	}
	return svc, nil
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	svc, err := requireSettings()
	if err != nil {
		return err
	}

	settings, err := svc.Settings.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[LLM]")
	if settings.LLM.Provider == "" {
		cmd.Println("  Provider: (not set)")
	} else {
		cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
		cmd.Printf("  Model: %s\n", settings.LLM.Model)
	}
	if settings.LLM.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		if settings.LLM.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.LLM.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !settings.LLM.IsConfigured() {
		status = "not configured (metadata generation disabled)"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	cmd.Println("[Store]")
	cmd.Printf("  Backend: %s\n", settings.Store.Backend.Description())
	switch settings.Store.Backend {
	case domain.BackendDrive:
		credentials := settings.Store.CredentialsFile
		if credentials == "" {
			credentials = "(application default credentials)"
		}
		cmd.Printf("  Credentials: %s\n", credentials)
	case domain.BackendLocal:
		cmd.Printf("  Root: %s\n", settings.Store.LocalRoot)
	}
	cmd.Println()

	cmd.Println("[Pipeline]")
	p := svc.Pipeline
	cmd.Printf("  Root folder: %s\n", orUnset(p.RootFolderID))
	cmd.Printf("  Archive folder: %s\n", orUnset(p.Archive.DestFolderID))
	cmd.Printf("  Page size: %d\n", p.PageSize)
	cmd.Printf("  OCR language: %s\n", p.OCRLanguage)
	cmd.Println()

	if err := svc.Settings.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'archivist settings set KEY VALUE' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}
	if svc.Config == nil {
		return errors.New("config store not configured")
	}

	value, ok := svc.Config.Get(args[0])
	if !ok {
		return fmt.Errorf("%w: %s is not set", domain.ErrNotFound, args[0])
	}
	if strings.HasSuffix(args[0], "api_key") {
		if s, isString := value.(string); isString {
			value = maskAPIKey(s)
		}
	}
	cmd.Println(value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	svc, err := requireSettings()
	if err != nil {
		return err
	}
	if svc.Config == nil {
		return errors.New("config store not configured")
	}
	key, raw := args[0], args[1]

	switch key {
	case "store.backend":
		err = svc.Settings.SetStoreBackend(domain.StoreBackend(raw))
	case "llm.provider":
		provider := domain.AIProvider(raw)
		if !provider.IsValid() {
			return fmt.Errorf("%w: invalid LLM provider: %s (choose %s)",
				domain.ErrInvalidInput, raw, providerNames())
		}
		err = svc.Config.Set(key, raw)
	default:
		err = svc.Config.Set(key, parseValue(raw))
	}
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	cmd.Printf("%s updated.\n", key)
	if err := svc.Settings.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	}
	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	svc, err := requireSettings()
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	reader := bufio.NewReader(in)

	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := domain.DefaultLLMModels()[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readSecret(in, reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := svc.Settings.SetLLMProvider(selected, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := svc.Settings.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n", selected.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readSecret reads without echo when in is a terminal.
func readSecret(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine(reader)
}

// parseValue types a command-line value for the TOML store.
func parseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

func providerNames() string {
	names := make([]string, 0, len(domain.AllLLMProviders()))
	for _, p := range domain.AllLLMProviders() {
		names = append(names, p.String())
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
