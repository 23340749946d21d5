package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "CONFIG_FILE", "ENV_FILE", "DB_DRIVER", "STORAGE_BACKEND", "LLM_PROVIDER", "MIN_CORPUS_CHARS",
		"CLASSIFY_TIMEOUT_SECONDS", "PROMPT_MAX_CHARS", "EXTRACT_WORKERS", "EVENTS_ENABLED", "EVENTS_BACKEND",
		"KAFKA_BROKERS", "TRACING_ENABLED")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinCorpusChars != 100 || cfg.PromptMaxChars != 8000 || cfg.ClassifyTimeoutSeconds != 90 {
		t.Fatalf("unexpected intake defaults %+v", cfg)
	}
	if cfg.DBDriver != "postgres" || cfg.StorageBackend != "localfs" || cfg.LLMProvider != "ollama" {
		t.Fatalf("unexpected backend defaults %+v", cfg)
	}
	if cfg.ExtractWorkers != 4 || cfg.EventsEnabled || cfg.EventsBackend != "nats" || cfg.TracingEnabled {
		t.Fatalf("unexpected worker/event defaults %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Fatalf("unexpected kafka brokers %v", cfg.KafkaBrokers)
	}
}

func TestLoadFileOverlayLosesToEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.yaml")
	content := "MIN_CORPUS_CHARS: 250\nDB_DRIVER: sqlite\nEVENTS_ENABLED: true\nLLM_BREAKER_FAILURE_RATIO: 0.25\nPROMPT_MAX_CHARS: 4000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	clearEnv(t, "ENV_FILE", "EVENTS_BACKEND", "MIN_CORPUS_CHARS", "DB_DRIVER", "EVENTS_ENABLED", "LLM_BREAKER_FAILURE_RATIO", "STORAGE_BACKEND", "LLM_PROVIDER")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PROMPT_MAX_CHARS", "6000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinCorpusChars != 250 || cfg.DBDriver != "sqlite" || !cfg.EventsEnabled || cfg.LLMBreakerFailureRatio != 0.25 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.PromptMaxChars != 6000 {
		t.Fatalf("environment must win over file, got %d", cfg.PromptMaxChars)
	}
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	cases := map[string]string{
		"DB_DRIVER":       "mysql",
		"STORAGE_BACKEND": "gcs",
		"LLM_PROVIDER":    "openai",
		"EVENTS_BACKEND":  "rabbitmq",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t, "CONFIG_FILE", "ENV_FILE", "DB_DRIVER", "STORAGE_BACKEND", "LLM_PROVIDER", "EVENTS_BACKEND")
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestLoadRequiresAnthropicKey(t *testing.T) {
	clearEnv(t, "CONFIG_FILE", "ENV_FILE", "DB_DRIVER", "STORAGE_BACKEND", "EVENTS_BACKEND", "ANTHROPIC_API_KEY")
	t.Setenv("LLM_PROVIDER", "anthropic")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing key error")
	}
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	if _, err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	clearEnv(t, "ENV_FILE")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadTOMLConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.toml")
	content := "MIN_CORPUS_CHARS = 300\nDB_DRIVER = \"sqlite\"\nEVENTS_ENABLED = true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	clearEnv(t, "ENV_FILE", "EVENTS_BACKEND", "MIN_CORPUS_CHARS", "DB_DRIVER", "EVENTS_ENABLED", "STORAGE_BACKEND", "LLM_PROVIDER")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinCorpusChars != 300 || cfg.DBDriver != "sqlite" || !cfg.EventsEnabled {
		t.Fatalf("toml values not applied: %+v", cfg)
	}
}

func TestLoadDotenvSitsBetweenEnvironmentAndFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "intake.yaml")
	if err := os.WriteFile(configPath, []byte("MIN_CORPUS_CHARS: 250\nPREVIEW_CHARS: 500\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envPath := filepath.Join(dir, "intake.env")
	content := "MIN_CORPUS_CHARS=400\nKAFKA_BROKERS=k1:9092, k2:9092\nEVENTS_BACKEND=kafka\nPROMPT_MAX_CHARS=1000\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	clearEnv(t, "MIN_CORPUS_CHARS", "PREVIEW_CHARS", "KAFKA_BROKERS", "EVENTS_BACKEND", "DB_DRIVER", "STORAGE_BACKEND", "LLM_PROVIDER")
	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("ENV_FILE", envPath)
	t.Setenv("PROMPT_MAX_CHARS", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinCorpusChars != 400 || cfg.PreviewChars != 500 || cfg.PromptMaxChars != 7000 {
		t.Fatalf("unexpected precedence %+v", cfg)
	}
	if cfg.EventsBackend != "kafka" || len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected kafka settings %+v", cfg)
	}
}

func TestLoadMissingEnvFileFails(t *testing.T) {
	clearEnv(t, "CONFIG_FILE")
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}
