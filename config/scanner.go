package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ScannerConfig holds configuration for the feed scanner CLI
type ScannerConfig struct {
	DBPath        string        `mapstructure:"db_path"`
	ProxyURL      string        `mapstructure:"proxy_url"`
	ClearInterval time.Duration `mapstructure:"clear_interval"`
	SearchLimit   int           `mapstructure:"search_limit"`
	Browser       BrowserConfig `mapstructure:"browser"`
}

// BrowserConfig controls the headless browser used for live feeds
type BrowserConfig struct {
	ChromePath  string        `mapstructure:"chrome_path"`
	Headless    bool          `mapstructure:"headless"`
	ScrollDelay time.Duration `mapstructure:"scroll_delay"`
	MaxScrolls  int           `mapstructure:"max_scrolls"`
	UserDataDir string        `mapstructure:"user_data_dir"`
}

type scannerRoot struct {
	Scanner ScannerConfig `mapstructure:"scanner"`
}

// LoadScanner loads the scanner section of the configuration
func LoadScanner() (*ScannerConfig, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	var root scannerRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg := &root.Scanner
	if err := validateScanner(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func scannerDefaults(v *viper.Viper) {
	v.SetDefault("scanner.db_path", "flipfinder.db")
	v.SetDefault("scanner.proxy_url", "http://localhost:3000")
	v.SetDefault("scanner.clear_interval", "5m")
	v.SetDefault("scanner.search_limit", 3)
	v.SetDefault("scanner.browser.chrome_path", "")
	v.SetDefault("scanner.browser.headless", true)
	v.SetDefault("scanner.browser.scroll_delay", "2s")
	v.SetDefault("scanner.browser.max_scrolls", 0) // 0 = keep scrolling until cancelled
	v.SetDefault("scanner.browser.user_data_dir", "")
}

func validateScanner(cfg *ScannerConfig) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("scanner db path is required")
	}
	if cfg.ClearInterval <= 0 {
		return fmt.Errorf("scanner clear interval must be positive, got: %s", cfg.ClearInterval)
	}
	if cfg.SearchLimit <= 0 {
		return fmt.Errorf("scanner search limit must be positive, got: %d", cfg.SearchLimit)
	}
	return nil
}
