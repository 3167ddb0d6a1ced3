package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "service:\n  name: portal-test\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.Name != "portal-test" {
		t.Errorf("Service.Name = %q, want portal-test", cfg.Service.Name)
	}
	if cfg.Service.PageSize != 10 {
		t.Errorf("Service.PageSize = %d, want 10", cfg.Service.PageSize)
	}
	if cfg.Elasticsearch.ProcessIndex != "ocds" || cfg.Elasticsearch.ContractIndex != "contracts" {
		t.Errorf("indices = %q/%q, want ocds/contracts", cfg.Elasticsearch.ProcessIndex, cfg.Elasticsearch.ContractIndex)
	}
	if cfg.Portal.PrecisionThreshold != 40000 {
		t.Errorf("PrecisionThreshold = %d, want 40000", cfg.Portal.PrecisionThreshold)
	}
	if cfg.Downloads.ProtectedPrefix != "/protectedMedia/" {
		t.Errorf("ProtectedPrefix = %q", cfg.Downloads.ProtectedPrefix)
	}
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	t.Setenv("ELASTICSEARCH_URL", "http://es.internal:9200")
	t.Setenv("PORTAL_REQUEST_TIMEOUT", "7s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDIS_ENABLED", "yes")

	path := writeConfig(t, "elasticsearch:\n  url: http://from-file:9200\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Elasticsearch.URL != "http://es.internal:9200" {
		t.Errorf("URL = %q, want env value", cfg.Elasticsearch.URL)
	}
	if cfg.Service.RequestTimeout != 7*time.Second {
		t.Errorf("RequestTimeout = %v, want 7s", cfg.Service.RequestTimeout)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Redis.Enabled {
		t.Error("Redis.Enabled = false, want true from env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("Load() on a missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{name: "valid defaults", mutate: func(*config.Config) {}},
		{name: "bad port", mutate: func(c *config.Config) { c.Service.Port = 70000 }, field: "service.port"},
		{name: "page size above max", mutate: func(c *config.Config) { c.Service.PageSize = 1000 }, field: "service.page_size"},
		{
			name:   "database enabled without name",
			mutate: func(c *config.Config) { c.Database.Enabled = true },
			field:  "database.name",
		},
		{name: "retries disabled", mutate: func(c *config.Config) { c.Elasticsearch.MaxRetries = -1 }},
		{
			name:   "negative retries",
			mutate: func(c *config.Config) { c.Elasticsearch.MaxRetries = -2 },
			field:  "elasticsearch.max_retries",
		},
		{
			name:   "negative client timeout",
			mutate: func(c *config.Config) { c.Elasticsearch.Timeout = -time.Second },
			field:  "elasticsearch.timeout",
		},
		{name: "bad log level", mutate: func(c *config.Config) { c.Logging.Level = "loud" }, field: "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var verr *config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	t.Parallel()

	db := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "portal", SSLMode: "disable"}
	if got, want := db.URL(), "postgres://u:p@db:5432/portal?sslmode=disable"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
