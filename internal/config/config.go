// Package config loads and validates runtime configuration for the merge
// engine: state root layout, VCS backend selection, AI resolution budgets,
// and logging.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultStateRoot     = ".parallex"
	defaultAIBudget      = 4000
	defaultVCSTimeout    = 30 * time.Second
	defaultTruncateSize  = 500
	defaultTargetBranch  = "main"
	defaultVCSBackend    = "exec"
	defaultFallbackDepth = 10
	defaultLogLevel      = "info"
	defaultLogFormat     = "json"
	defaultLogOutput     = "stderr"
)

var defaultExtensionWhitelist = []string{".py", ".js", ".jsx", ".ts", ".tsx"}

// Config is the top-level configuration for the merge engine.
type Config struct {
	Merge      MergeConfig      `mapstructure:"merge"`
	VCS        VCSConfig        `mapstructure:"vcs"`
	AI         AIConfig         `mapstructure:"ai"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
}

// MergeConfig controls where merge state lives and which files are eligible
// for semantic analysis.
type MergeConfig struct {
	StateRoot          string   `mapstructure:"state_root"`
	ExtensionWhitelist []string `mapstructure:"extension_whitelist"`
	TargetBranch       string   `mapstructure:"target_branch"`
	DryRun             bool     `mapstructure:"dry_run"`
}

// VCSConfig selects and tunes the version-control backend.
type VCSConfig struct {
	Backend       string        `mapstructure:"backend"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FallbackDepth int           `mapstructure:"fallback_depth"`
}

// AIConfig bounds the AI conflict-resolution budget.
type AIConfig struct {
	TokenBudget   int `mapstructure:"token_budget"`
	TruncateChars int `mapstructure:"truncate_chars"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RepositoryConfig identifies the project the merge engine operates on.
type RepositoryConfig struct {
	ProjectRoot string `mapstructure:"project_root"`
}

var (
	// ErrInvalidAIBudget is returned when the AI token budget is not positive.
	ErrInvalidAIBudget = fmt.Errorf("ai.token_budget must be positive")
	// ErrInvalidVCSTimeout is returned when the VCS timeout is not positive.
	ErrInvalidVCSTimeout = fmt.Errorf("vcs.timeout must be positive")
	// ErrEmptyStateRoot is returned when merge.state_root is blank.
	ErrEmptyStateRoot = fmt.Errorf("merge.state_root must not be empty")
	// ErrEmptyExtensionList is returned when no file extensions are whitelisted.
	ErrEmptyExtensionList = fmt.Errorf("merge.extension_whitelist must not be empty")
	// ErrInvalidTruncateSize is returned when the AI truncate size is not positive.
	ErrInvalidTruncateSize = fmt.Errorf("ai.truncate_chars must be positive")
	// ErrInvalidVCSBackend is returned when vcs.backend names an unknown backend.
	ErrInvalidVCSBackend = fmt.Errorf("vcs.backend must be one of: exec, nativegit")
)

// LoadConfig reads configuration from built-in defaults, then the config
// file (configPath if non-empty), then environment variables prefixed
// PARALLEX_, each layer overriding the one before, then validates the
// result.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PARALLEX")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("parallex")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/parallex")
	}

	if readErr := v.ReadInConfig(); readErr != nil {
		if _, notFound := readErr.(viper.ConfigFileNotFoundError); !notFound && configPath != "" {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	if unmarshalErr := v.Unmarshal(&cfg); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	if validateErr := validateConfig(&cfg); validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("merge.state_root", defaultStateRoot)
	v.SetDefault("merge.extension_whitelist", defaultExtensionWhitelist)
	v.SetDefault("merge.target_branch", defaultTargetBranch)
	v.SetDefault("merge.dry_run", false)

	v.SetDefault("vcs.backend", defaultVCSBackend)
	v.SetDefault("vcs.timeout", defaultVCSTimeout)
	v.SetDefault("vcs.fallback_depth", defaultFallbackDepth)

	v.SetDefault("ai.token_budget", defaultAIBudget)
	v.SetDefault("ai.truncate_chars", defaultTruncateSize)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.format", defaultLogFormat)
	v.SetDefault("logging.output", defaultLogOutput)

	v.SetDefault("repository.project_root", ".")
}

func validateConfig(cfg *Config) error {
	if cfg.AI.TokenBudget <= 0 {
		return ErrInvalidAIBudget
	}

	if cfg.AI.TruncateChars <= 0 {
		return ErrInvalidTruncateSize
	}

	if cfg.VCS.Timeout <= 0 {
		return ErrInvalidVCSTimeout
	}

	if cfg.VCS.Backend != "exec" && cfg.VCS.Backend != "nativegit" {
		return ErrInvalidVCSBackend
	}

	if cfg.Merge.StateRoot == "" {
		return ErrEmptyStateRoot
	}

	if len(cfg.Merge.ExtensionWhitelist) == 0 {
		return ErrEmptyExtensionList
	}

	return nil
}
