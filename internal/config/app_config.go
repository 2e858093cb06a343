package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/repoview/internal/utils"
)

// Defaults applied when neither configuration file sets a value.
const (
	DefaultAPIBase      = "https://api.github.com"
	DefaultDefaultFile  = "src/app/app.component.ts"
	DefaultFormat       = "raw"
	DefaultServeAddress = "127.0.0.1:8080"
	DefaultTimeout      = 30 * time.Second
	DefaultOpenDelay    = 300 * time.Millisecond
	DefaultTokenModel   = "gpt-4o"
	DefaultLogLevel     = utils.DefaultLogLevel
)

// DefaultIgnoreFiles lists the rules hiding repository noise.
var DefaultIgnoreFiles = []string{
	".gitignore",
	"README.md",
	"package-lock.json",
	"*.spec.ts",
	"test/*",
	".vscode",
	".editorconfig",
}

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds the values read from configuration files.
// Pointer and nil-able fields distinguish unset values from explicit ones.
type ApplicationConfiguration struct {
	Repository  string             `mapstructure:"github"`
	Preview     string             `mapstructure:"preview"`
	HideToolbar *bool              `mapstructure:"hide_toolbar"`
	Tab         string             `mapstructure:"tab"`
	IgnoreFiles []string           `mapstructure:"ignore_files"`
	DefaultFile *string            `mapstructure:"default_file"`
	APIBase     string             `mapstructure:"api_base"`
	Timeout     string             `mapstructure:"timeout"`
	OpenDelay   string             `mapstructure:"open_delay"`
	Format      string             `mapstructure:"format"`
	Summary     *bool              `mapstructure:"summary"`
	LogLevel    string             `mapstructure:"log_level"`
	Cache       CacheConfiguration `mapstructure:"cache"`
	Serve       ServeConfiguration `mapstructure:"serve"`
	Tokens      TokenConfiguration `mapstructure:"tokens"`
}

// CacheConfiguration controls where fetched payloads persist.
type CacheConfiguration struct {
	Directory string `mapstructure:"directory"`
	Disabled  *bool  `mapstructure:"disabled"`
}

// ServeConfiguration defines defaults for the serve command.
type ServeConfiguration struct {
	Address string `mapstructure:"address"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Model string `mapstructure:"model"`
}

// Settings are the resolved values with defaults applied.
type Settings struct {
	Repository     string
	Preview        string
	HideToolbar    bool
	Tab            string
	IgnoreFiles    []string
	DefaultFile    string
	APIBase        string
	Timeout        time.Duration
	OpenDelay      time.Duration
	Format         string
	Summary        bool
	LogLevel       string
	CacheDirectory string
	CacheDisabled  bool
	ServeAddress   string
	TokenModel     string
}

// LoadApplicationConfiguration loads configuration from global and local files.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	if merged.IgnoreFiles != nil {
		merged.IgnoreFiles = utils.DeduplicatePatterns(merged.IgnoreFiles)
	}

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Repository = mergeString(result.Repository, override.Repository)
	result.Preview = mergeString(result.Preview, override.Preview)
	if override.HideToolbar != nil {
		result.HideToolbar = cloneBool(override.HideToolbar)
	}
	result.Tab = mergeString(result.Tab, override.Tab)
	if override.IgnoreFiles != nil {
		result.IgnoreFiles = append([]string{}, utils.DeduplicatePatterns(override.IgnoreFiles)...)
	}
	if override.DefaultFile != nil {
		result.DefaultFile = cloneString(override.DefaultFile)
	}
	result.APIBase = mergeString(result.APIBase, override.APIBase)
	result.Timeout = mergeString(result.Timeout, override.Timeout)
	result.OpenDelay = mergeString(result.OpenDelay, override.OpenDelay)
	result.Format = mergeString(result.Format, override.Format)
	if override.Summary != nil {
		result.Summary = cloneBool(override.Summary)
	}
	result.LogLevel = mergeString(result.LogLevel, override.LogLevel)
	result.Cache = result.Cache.merge(override.Cache)
	result.Serve.Address = mergeString(result.Serve.Address, override.Serve.Address)
	result.Tokens.Model = mergeString(result.Tokens.Model, override.Tokens.Model)
	return result
}

func (config CacheConfiguration) merge(override CacheConfiguration) CacheConfiguration {
	result := config
	result.Directory = mergeString(result.Directory, override.Directory)
	if override.Disabled != nil {
		result.Disabled = cloneBool(override.Disabled)
	}
	return result
}

// Resolve applies defaults to unset values and parses durations.
func (config ApplicationConfiguration) Resolve() (Settings, error) {
	settings := Settings{
		Repository:     config.Repository,
		Preview:        config.Preview,
		HideToolbar:    boolValue(config.HideToolbar, false),
		Tab:            config.Tab,
		IgnoreFiles:    append([]string{}, DefaultIgnoreFiles...),
		DefaultFile:    DefaultDefaultFile,
		APIBase:        stringOr(config.APIBase, DefaultAPIBase),
		Format:         strings.ToLower(stringOr(config.Format, DefaultFormat)),
		Summary:        boolValue(config.Summary, false),
		LogLevel:       stringOr(config.LogLevel, DefaultLogLevel),
		CacheDirectory: config.Cache.Directory,
		CacheDisabled:  boolValue(config.Cache.Disabled, false),
		ServeAddress:   stringOr(config.Serve.Address, DefaultServeAddress),
		TokenModel:     stringOr(config.Tokens.Model, DefaultTokenModel),
	}
	if config.IgnoreFiles != nil {
		settings.IgnoreFiles = append([]string{}, config.IgnoreFiles...)
	}
	if config.DefaultFile != nil {
		settings.DefaultFile = strings.TrimSpace(*config.DefaultFile)
	}

	timeout, err := parseDuration("timeout", config.Timeout, DefaultTimeout)
	if err != nil {
		return Settings{}, err
	}
	settings.Timeout = timeout
	openDelay, err := parseDuration("open_delay", config.OpenDelay, DefaultOpenDelay)
	if err != nil {
		return Settings{}, err
	}
	settings.OpenDelay = openDelay

	if settings.CacheDirectory == "" && !settings.CacheDisabled {
		userCacheDirectory, cacheErr := os.UserCacheDir()
		if cacheErr != nil {
			return Settings{}, fmt.Errorf("resolve cache directory: %w", cacheErr)
		}
		settings.CacheDirectory = filepath.Join(userCacheDirectory, utils.CacheDirectoryName)
	}
	return settings, nil
}

func parseDuration(key string, value string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse %s duration %q: %w", key, value, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative: %q", key, value)
	}
	return parsed, nil
}

func mergeString(current string, override string) string {
	if override != "" {
		return override
	}
	return current
}

func stringOr(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func boolValue(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
