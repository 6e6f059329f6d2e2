package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogFile       string `yaml:"log"`
	InboxDir      string `yaml:"inbox_dir"`
	MergeEventsMs int    `yaml:"write_debounce_ms"`
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	TopK          int    `yaml:"top_k"`
	ChromaAddr    string `yaml:"chroma_addr"`
	ServerAddr    string `yaml:"server_addr"`
	OCRLanguage   string `yaml:"ocr_language"`
	OpenAI        *struct {
		Model  string `yaml:"model"`
		ApiKey string `yaml:"api_key"`
	} `yaml:"open_ai"`
	Gemini *struct {
		Model  string `yaml:"model"`
		ApiKey string `yaml:"api_key"`
	} `yaml:"gemini"`
	LLM *struct {
		Model  string `yaml:"model"`
		ApiKey string `yaml:"api_key"`
	} `yaml:"llm"`
}

func readConfig(cfgPath string) (*Config, error) {
	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := &Config{}
	dec := yaml.NewDecoder(cfgFile)
	err = dec.Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	applyDefaults(cfg)
	expandKeys(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 500
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 50
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	if cfg.MergeEventsMs == 0 {
		cfg.MergeEventsMs = 500
	}
}

// API keys in the config may reference environment variables, which godotenv
// populates from a .env file at startup.
func expandKeys(cfg *Config) {
	if cfg.OpenAI != nil {
		cfg.OpenAI.ApiKey = os.ExpandEnv(cfg.OpenAI.ApiKey)
	}
	if cfg.Gemini != nil {
		cfg.Gemini.ApiKey = os.ExpandEnv(cfg.Gemini.ApiKey)
	}
	if cfg.LLM != nil {
		cfg.LLM.ApiKey = os.ExpandEnv(cfg.LLM.ApiKey)
	}
}
