package models

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type CaptionConfig struct {
	// Model identifies the captioning model. Empty or "disabled"
	// (case-insensitive) turns captioning off entirely.
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

type Config struct {
	AppName     string        `yaml:"app_name"`
	ServerAddr  string        `yaml:"server_addr"`
	BaseURL     string        `yaml:"base_url"`
	DatabaseURL string        `yaml:"database_url"`
	StoragePath string        `yaml:"storage_path"`
	Caption     CaptionConfig `yaml:"caption"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional; environment always wins over the yaml file.
	_ = godotenv.Load()

	cfg := Config{
		AppName:     "Image Pipeline",
		ServerAddr:  ":8000",
		BaseURL:     "http://localhost:8000",
		StoragePath: "storage",
		Caption:     CaptionConfig{Model: "disabled"},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.ServerAddr = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		cfg.StoragePath = v
	}
	if v := os.Getenv("CAPTION_MODEL"); v != "" {
		cfg.Caption.Model = v
	}
	if v := os.Getenv("CAPTION_ENDPOINT"); v != "" {
		cfg.Caption.Endpoint = v
	}
	return &cfg, nil
}
