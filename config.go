package main

import (
	"fmt"
	"os"
	"strings"

	chatapi "aichat/chat-api"
	"aichat/db"

	yaml "gopkg.in/yaml.v2"
)

type LogConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type AppConfig struct {
	Port          string         `yaml:"port"`
	Host          string         `yaml:"host"`
	SessionSecret string         `yaml:"session_secret"`
	HistoryFile   string         `yaml:"history_file"`
	CompletionURL string         `yaml:"completion_url"`
	Store         db.Config      `yaml:"store"`
	Users         db.Config      `yaml:"users"`
	OpenAI        chatapi.Config `yaml:"openai"`
	Log           LogConfig      `yaml:"log"`
}

func defaultConfig() AppConfig {
	return AppConfig{
		Port:  "8080",
		Store: db.Config{Type: db.TypeSQLite, DSN: "aichat.db"},
		Users: db.Config{Type: db.TypeSQLite, DSN: "aichat.db"},
		Log:   LogConfig{MaxSize: 100, MaxAge: 30, MaxBackups: 10},
	}
}

// loadConfig reads the yaml file over the defaults. An empty path keeps
// the defaults.
func loadConfig(path string) (AppConfig, error) {
	conf := defaultConfig()
	if path == "" {
		return conf, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return conf, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &conf); err != nil {
		return conf, fmt.Errorf("parse config %s: %w", path, err)
	}
	return conf, nil
}

// applyEnv lets secrets come from the environment (or .env).
func applyEnv(conf *AppConfig, getenv func(string) string) {
	if v := getenv("OPENAI_API_KEY"); v != "" {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				conf.OpenAI.Keys = append(conf.OpenAI.Keys, k)
			}
		}
	}
	if v := getenv("MONGO_URI"); v != "" {
		conf.Store.MongoURI = v
	}
	if v := getenv("DATABASE_DSN"); v != "" {
		if conf.Store.Type != db.TypeMongo {
			conf.Store.DSN = v
		}
		conf.Users.DSN = v
	}
	if v := getenv("SESSION_SECRET"); v != "" {
		conf.SessionSecret = v
	}
	if v := getenv("COMPLETION_URL"); v != "" {
		conf.CompletionURL = v
	}
}
