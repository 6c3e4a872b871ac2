package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// DateLayout is the layout of season release dates.
const DateLayout = "2006-01-02"

type Config struct {
	Seasons    []Season   `yaml:"seasons"`
	Source     Source     `yaml:"source"`
	Filter     Filter     `yaml:"filter"`
	Classifier Classifier `yaml:"classifier"`
	Sampling   Sampling   `yaml:"sampling"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

// Season is one release unit: the content whose comments are collected and
// the date after which comments no longer count as pre-release.
type Season struct {
	ID          string `yaml:"id"`
	ContentID   string `yaml:"content_id"`
	ReleaseDate string `yaml:"release_date"`
	FilePrefix  string `yaml:"file_prefix"`
}

type Source struct {
	YouTube YouTube `yaml:"youtube"`
}

type YouTube struct {
	APIKeyEnv  string        `yaml:"api_key_env"`
	PageSize   int64         `yaml:"page_size"`
	PageDelay  time.Duration `yaml:"page_delay"`
	TextFormat string        `yaml:"text_format"`
	Order      string        `yaml:"order"`
}

type Filter struct {
	MinTokens int    `yaml:"min_tokens"`
	Language  string `yaml:"language"`
}

type Classifier struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	URL           string        `yaml:"url"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	MaxInputRunes int           `yaml:"max_input_runes"`
	OllamaURL     string        `yaml:"ollama_url"`
	OpenAIModel   string        `yaml:"openai_model"`
	Timeout       time.Duration `yaml:"timeout"`
}

type Sampling struct {
	Size int `yaml:"size"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for hypetrack.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "hypetrack")
}

// DataDir returns the XDG data directory for hypetrack.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "hypetrack")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/hypetrack/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'hypetrack init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Source: Source{
			YouTube: YouTube{
				APIKeyEnv:  "YOUTUBE_API_KEY",
				PageSize:   100,
				PageDelay:  500 * time.Millisecond,
				TextFormat: "html",
				Order:      "time",
			},
		},
		Filter: Filter{MinTokens: 3, Language: "en"},
		Classifier: Classifier{
			Provider:      "huggingface",
			URL:           "https://api-inference.huggingface.co/models",
			MaxInputRunes: 512,
			OllamaURL:     "http://localhost:11434",
			OpenAIModel:   "gpt-4o-mini",
			Timeout:       60 * time.Second,
		},
		Sampling: Sampling{Size: 300},
		Server:   Server{Port: 8000},
		Logging:  Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Classifier.applyProviderDefaults()

	for i := range cfg.Seasons {
		if cfg.Seasons[i].FilePrefix == "" {
			cfg.Seasons[i].FilePrefix = cfg.Seasons[i].ID + "_Hype"
		}
	}

	return cfg, nil
}

// providerDefaults are the model and credential variable each classifier
// provider uses when the config leaves them empty.
var providerDefaults = map[string]struct{ Model, APIKeyEnv string }{
	"huggingface": {"distilbert-base-uncased-finetuned-sst-2-english", "HF_API_TOKEN"},
	"ollama":      {"llama3.2", "OPENAI_API_KEY"},
	"openai":      {"gpt-4o-mini", "OPENAI_API_KEY"},
	"gemini":      {"gemini-1.5-flash", "GEMINI_API_KEY"},
}

func (c *Classifier) applyProviderDefaults() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "huggingface"
	}
	d, ok := providerDefaults[c.Provider]
	if !ok {
		return
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = d.APIKeyEnv
	}
}

// Validate checks the invariants the pipeline relies on.
func (c *Config) Validate() error {
	if len(c.Seasons) == 0 {
		return fmt.Errorf("config: no seasons defined")
	}
	seen := make(map[string]struct{}, len(c.Seasons))
	for _, s := range c.Seasons {
		if s.ID == "" {
			return fmt.Errorf("config: season with empty id")
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("config: duplicate season id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if _, err := time.Parse(DateLayout, s.ReleaseDate); err != nil {
			return fmt.Errorf("config: season %s: invalid release_date %q", s.ID, s.ReleaseDate)
		}
	}
	if ps := c.Source.YouTube.PageSize; ps < 1 || ps > 100 {
		return fmt.Errorf("config: source.youtube.page_size must be within 1..100, got %d", ps)
	}
	if c.Filter.MinTokens < 1 {
		return fmt.Errorf("config: filter.min_tokens must be positive")
	}
	if c.Sampling.Size < 1 {
		return fmt.Errorf("config: sampling.size must be positive")
	}
	if c.Classifier.MaxInputRunes < 1 {
		return fmt.Errorf("config: classifier.max_input_runes must be positive")
	}
	if _, ok := providerDefaults[strings.ToLower(c.Classifier.Provider)]; !ok && c.Classifier.Provider != "" {
		return fmt.Errorf("config: unknown classifier.provider %q", c.Classifier.Provider)
	}
	return nil
}

// SeasonIDs returns the season ids in enumeration order.
func (c *Config) SeasonIDs() []string {
	ids := make([]string, len(c.Seasons))
	for i, s := range c.Seasons {
		ids[i] = s.ID
	}
	return ids
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
