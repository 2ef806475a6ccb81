package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/zennote/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestStorageConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  StorageConfig
		ok   bool
	}{
		{"fs", StorageConfig{Driver: DriverFS, Path: "./data"}, true},
		{"sqlite", StorageConfig{Driver: DriverSQLite, Path: "zen.db"}, true},
		{"memory without path", StorageConfig{Driver: DriverMemory}, true},
		{"fs without path", StorageConfig{Driver: DriverFS}, false},
		{"unknown driver", StorageConfig{Driver: "redis", Path: "x"}, false},
		{"empty driver", StorageConfig{Path: "x"}, false},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("%s: err = %v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestPersistenceConfig_NegativeDelay(t *testing.T) {
	cfg := PersistenceConfig{DebounceDelay: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative debounce delay should fail")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("ZENNOTE_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  log_level: debug
  http:
    port: 9090
storage:
  driver: sqlite
  path: /tmp/zen.db
persistence:
  debounce_delay: 750ms
  flush_on_exit: true
auth:
  mode: token
  token: ${ZENNOTE_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Storage.ImagesDir != "./data/images" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Persistence.DebounceDelay != 750*time.Millisecond || !cfg.Persistence.FlushOnExit {
		t.Errorf("persistence = %+v", cfg.Persistence)
	}
	if cfg.Auth.Token != "from-env" {
		t.Errorf("token = %q, want env expansion", cfg.Auth.Token)
	}
}
