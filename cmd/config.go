package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/civic/internal/events"
	"github.com/joescharf/civic/internal/output"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "civic"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage civic configuration.

Running bare 'civic config' is the same as 'civic config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

// configKey describes one setting: its default, how its value is checked
// and whether 'config show' hides it.
type configKey struct {
	Key     string
	Default func(stateDir string) any
	Check   func(key string) error
	Secret  bool
}

// envVar is the environment variable viper binds to the key.
func (k configKey) envVar() string {
	return "CIVIC_" + strings.ToUpper(strings.ReplaceAll(k.Key, ".", "_"))
}

func constant(v any) func(string) any { return func(string) any { return v } }

var configKeys = []configKey{
	{Key: "state_dir", Default: func(dir string) any { return dir }},
	{Key: "db_path", Default: func(dir string) any { return filepath.Join(dir, "civic.db") }},
	{Key: "log.level", Default: constant("info"), Check: oneOf("debug", "info", "warn", "warning", "error")},
	{Key: "log.file", Default: constant("")},
	{Key: "events.upcoming_days", Default: constant(events.DefaultUpcomingDays), Check: atLeast(0)},
	{Key: "events.recommend_limit", Default: constant(events.DefaultRecommendLimit), Check: atLeast(1)},
	{Key: "events.recent_searches", Default: constant(events.DefaultRecentSearches), Check: atLeast(1)},
	{Key: "anthropic.api_key", Default: constant(""), Secret: true},
	{Key: "anthropic.model", Default: constant(defaultModel)},
	{Key: "anthropic.base_url", Default: constant("")},
}

// setDefaults registers every config key with its default.
func setDefaults(stateDir string) {
	for _, k := range configKeys {
		viper.SetDefault(k.Key, k.Default(stateDir))
	}
}

func atLeast(minimum int) func(string) error {
	return func(key string) error {
		n, err := cast.ToIntE(viper.Get(key))
		if err != nil {
			return fmt.Errorf("%s: %v is not a whole number", key, viper.Get(key))
		}
		if n < minimum {
			return fmt.Errorf("%s: must be at least %d (got %d)", key, minimum, n)
		}
		return nil
	}
}

func oneOf(values ...string) func(string) error {
	return func(key string) error {
		v := strings.ToLower(strings.TrimSpace(viper.GetString(key)))
		if !slices.Contains(values, v) {
			return fmt.Errorf("%s: %q is not one of %s", key, viper.GetString(key), strings.Join(values, ", "))
		}
		return nil
	}
}

// validateConfig checks every key and reports all bad values at once.
func validateConfig() error {
	var errs []error
	for _, k := range configKeys {
		if k.Check == nil {
			continue
		}
		if err := k.Check(k.Key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# civic configuration
# See: civic config show (for effective values and sources)

# State/data directory (default: ~/.config/civic)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/civic/civic.db)
# db_path: {{ .DBPath }}

# Logging
log:
  # Minimum level: debug, info, warn, error (default: "info")
  level: "{{ .LogLevel }}"

  # Append logs to this file instead of stderr (default: "")
  file: "{{ .LogFile }}"

# Local events
events:
  # Days past today shown by 'civic event upcoming', 0 or more (default: 7)
  upcoming_days: {{ .UpcomingDays }}

  # Maximum events suggested by 'civic event recommend', 1 or more (default: 3)
  recommend_limit: {{ .RecommendLimit }}

  # Searched categories remembered for recommendations, 1 or more (default: 5)
  recent_searches: {{ .RecentSearches }}

# Report triage with Claude. Without a key, categories and priorities come
# from keyword rules and imports use the markdown parser.
anthropic:
  # API key (prefer the ANTHROPIC_API_KEY environment variable)
  # api_key: ""

  # Model used to extract and classify reports
  model: "{{ .Model }}"
`

type configTemplateData struct {
	StateDir       string
	DBPath         string
	LogLevel       string
	LogFile        string
	UpcomingDays   int
	RecommendLimit int
	RecentSearches int
	Model          string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:       viper.GetString("state_dir"),
		DBPath:         viper.GetString("db_path"),
		LogLevel:       viper.GetString("log.level"),
		LogFile:        viper.GetString("log.file"),
		UpcomingDays:   viper.GetInt("events.upcoming_days"),
		RecommendLimit: viper.GetInt("events.recommend_limit"),
		RecentSearches: viper.GetInt("events.recent_searches"),
		Model:          viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		var val any = viper.Get(k.Key)
		if k.Secret {
			val = maskSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, k.envVar(), fileValues)
		fmt.Fprintf(ui.Out, "  %-24s %v  %s\n", k.Key, val, source)
		if k.Check != nil {
			if err := k.Check(k.Key); err != nil {
				fmt.Fprintf(ui.Out, "  %-24s %s\n", "", output.Red("invalid: "+err.Error()))
			}
		}
	}

	return nil
}

// maskSecret shows only whether a secret is set and its last four characters.
func maskSecret(v string) string {
	if v == "" {
		return "(unset)"
	}
	if len(v) <= 8 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configCheckRun()
	},
}

func configCheckRun() error {
	if err := validateConfig(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	ui.Success("Configuration is valid")
	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'civic config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
