package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/xhad/narrator/pkg/llm"
	"github.com/xhad/narrator/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Category is a report section with its own analyst persona.
type Category struct {
	SystemMessage string `yaml:"system_message"`
	Icon          string `yaml:"icon"`
	Color         string `yaml:"color"`
}

type Source struct {
	URL      string   `yaml:"url"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

type Config struct {
	LLM llm.ProviderConfig `yaml:"llm"`

	// RequestsPerSecond throttles generation calls; zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	Speech struct {
		Models      []string      `yaml:"models"`
		Voice       string        `yaml:"voice"`
		Concurrency int           `yaml:"concurrency"`
		Retries     int           `yaml:"retries"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"speech"`

	Processor struct {
		ChunkSize      int    `yaml:"chunk_size"`
		Strategy       string `yaml:"strategy"`
		TargetChunks   int    `yaml:"target_chunks"`
		AllowHardSplit bool   `yaml:"allow_hard_split"`
	} `yaml:"processor"`

	Scraper struct {
		RateLimit       float64       `yaml:"rate_limit"`
		Timeout         time.Duration `yaml:"timeout"`
		UserAgent       string        `yaml:"user_agent"`
		ExcludePatterns []string      `yaml:"exclude_patterns"`
	} `yaml:"scraper"`

	State struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"state"`

	Database struct {
		URL            string `yaml:"url"`
		TableName      string `yaml:"table_name"`
		VectorDim      int    `yaml:"vector_dim"`
		EmbeddingModel string `yaml:"embedding_model"`
		EmbeddingURL   string `yaml:"embedding_url"`
	} `yaml:"database"`

	News struct {
		Delay    time.Duration `yaml:"delay"`
		Deep     bool          `yaml:"deep"`
		MaxPages int           `yaml:"max_pages"`
		Narrate  bool          `yaml:"narrate"`
		Schedule string        `yaml:"schedule"`
	} `yaml:"news"`

	Books struct {
		Patterns []string `yaml:"patterns"`
		Mode     string   `yaml:"mode"`
	} `yaml:"books"`

	Random struct {
		Pages int `yaml:"pages"`
	} `yaml:"random"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log logger.Config `yaml:"log"`

	Categories map[string]Category `yaml:"categories"`
	Sources    []Source            `yaml:"sources"`
	// NewsSources is the legacy name of Sources.
	NewsSources  []Source `yaml:"news_sources"`
	OutputPrefix string   `yaml:"output_prefix"`
	OutputDir    string   `yaml:"output_dir"`
	Language     string   `yaml:"language"`

	Keys llm.Keys `yaml:"-"`
}

// DefaultLocations are searched in order when no path is given.
func DefaultLocations() []string {
	return []string{
		"narrator.yaml",
		"narrator.yml",
		"ai-news-config.json",
		filepath.Join(os.Getenv("HOME"), ".config/narrator/config.yaml"),
		"/etc/narrator/config.yaml",
	}
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		for _, loc := range DefaultLocations() {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// YAML is a superset of JSON, so the legacy JSON configs parse as well.
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = llm.ProviderOpenAI
	}
	if config.LLM.ContextLimit == 0 {
		config.LLM.ContextLimit = llm.DefaultContextLimit
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = llm.DefaultMaxTokens
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = llm.DefaultTimeout
	}

	if len(config.Speech.Models) == 0 {
		config.Speech.Models = []string{"gpt-4o-mini-tts", "tts-1"}
	}
	if config.Speech.Concurrency == 0 {
		config.Speech.Concurrency = 5
	}
	if config.Speech.Timeout == 0 {
		config.Speech.Timeout = 120 * time.Second
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 4000
	}
	if config.Processor.Strategy == "" {
		config.Processor.Strategy = "paragraph"
	}

	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.Timeout == 0 {
		config.Scraper.Timeout = 30 * time.Second
	}

	if config.State.Backend == "" {
		config.State.Backend = "file"
	}
	if config.State.Dir == "" {
		config.State.Dir = ".ai-news-status"
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "analyses"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}

	if config.News.Delay == 0 {
		config.News.Delay = 5 * time.Second
	}
	if config.News.MaxPages == 0 {
		config.News.MaxPages = 5
	}

	if len(config.Books.Patterns) == 0 {
		config.Books.Patterns = []string{"*.md", "*.txt"}
	}
	if config.Books.Mode == "" {
		config.Books.Mode = "audio"
	}

	if config.Random.Pages == 0 {
		config.Random.Pages = 5
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}

	if len(config.Sources) == 0 {
		config.Sources = config.NewsSources
	}
	config.NewsSources = nil
	if config.OutputPrefix == "" {
		config.OutputPrefix = "tech_news"
	}
	if config.OutputDir == "" {
		config.OutputDir = "."
	}
	if config.Language == "" {
		config.Language = llm.DefaultLanguage
	}

	config.Log.SetDefaults()
}

func mergeWithEnv(config *Config) {
	config.Keys.OpenAI = os.Getenv("OPENAI_API_KEY")
	config.Keys.Anthropic = os.Getenv("ANTHROPIC_API_KEY")
	config.Keys.Gemini = os.Getenv("GEMINI_API_KEY")

	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.LLM.Provider == llm.ProviderOllama && config.LLM.BaseURL == "" {
			config.LLM.BaseURL = baseURL
		}
		if config.Database.EmbeddingURL == "" {
			config.Database.EmbeddingURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.State.Redis.Addr = addr
	}
	if level := os.Getenv("NARRATOR_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}

// SystemMessage returns the persona of a category, or the default analyst.
func (c *Config) SystemMessage(category string) string {
	if cat, ok := c.Categories[category]; ok && cat.SystemMessage != "" {
		return cat.SystemMessage
	}
	return llm.DefaultAnalystSystem
}
