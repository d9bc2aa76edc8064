package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DownloadDir string `json:"download_dir" yaml:"download_dir"`
	// SessionFile is where the Telegram MTProto session is persisted across
	// restarts.
	SessionFile string `json:"session_file" yaml:"session_file"`
	// Mirrors are alternate catalog front-end hosts the fetch chain rotates
	// through when the default endpoints are blocked, e.g. public Invidious
	// instances. Scheme-qualified host, no trailing slash.
	Mirrors []string `json:"mirrors" yaml:"mirrors"`
	// CookiesFile is an optional Netscape-format cookie jar handed to the
	// fetch primitive for cookie-authenticated attempts.
	CookiesFile string `json:"cookies_file" yaml:"cookies_file"`
	// OAuthToken is an optional delegated bearer token. When set, the
	// candidate chain ends with a token-authenticated retry of the default
	// endpoint.
	OAuthToken        string  `json:"oauth_token"         yaml:"oauth_token"`
	FromIDs           []int64 `json:"from_ids"            yaml:"from_ids"`
	SearchLimit       int     `json:"search_limit"        yaml:"search_limit"`
	MaxConcurrentRuns int     `json:"max_concurrent_runs" yaml:"max_concurrent_runs"`
}

func (cfg *Config) validate() error {
	if cfg.DownloadDir == "" {
		return errors.New("download dir is empty")
	}

	for _, m := range cfg.Mirrors {
		if m == "" {
			return errors.New("mirror host is empty")
		}
	}

	if cfg.SessionFile == "" {
		cfg.SessionFile = "session.json"
	}

	if cfg.SearchLimit == 0 {
		cfg.SearchLimit = 5
	}

	if cfg.MaxConcurrentRuns == 0 {
		cfg.MaxConcurrentRuns = 3
	}

	return nil
}

func FromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if nil != err {
		return nil, fmt.Errorf("failed to read config file %q: %v", filePath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); nil != err {
		return nil, fmt.Errorf("failed to unmarshal config file %q: %v", filePath, err)
	}

	if err := cfg.validate(); nil != err {
		return nil, fmt.Errorf("validation failed: %v", err)
	}

	return &cfg, nil
}

func FromString(data string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(data), &cfg); nil != err {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	if err := cfg.validate(); nil != err {
		return nil, fmt.Errorf("validation failed: %v", err)
	}

	return &cfg, nil
}
