package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"CONFESS_ADDR", "DATABASE_URL", "REDIS_ADDR", "LOG_LEVEL", "CONFESS_TOKEN_PEPPER"} {
		unsetenv(t, k)
	}

	got, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	unsetenv(t, "REDIS_ADDR")
	unsetenv(t, "CONFESS_TOKEN_PEPPER")
	unsetenv(t, "LOG_LEVEL")

	path := filepath.Join(dir, "confessd.yaml")
	writeFile(t, path, `
server:
  addr: ":9000"
  read_timeout: 2s
database:
  url: postgres://feed:secret@db:5432/feed
feed:
  op_timeout: 3s
  max_page_size: 20
log:
  level: debug
  format: json
`)
	writeFile(t, filepath.Join(dir, ".env"), "REDIS_ADDR=localhost:6379\nCONFESS_TOKEN_PEPPER=from-dotenv\n")
	t.Setenv("CONFESS_ADDR", ":9100")
	t.Setenv("CONFESS_POST_RATE", "0.5")
	t.Setenv("CONFESS_AUTO_MIGRATE", "false")

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := Default()
	want.Server.Addr = ":9100"
	want.Server.ReadTimeout = 2 * time.Second
	want.Database.URL = "postgres://feed:secret@db:5432/feed"
	want.Database.AutoMigrate = false
	want.Feed.OpTimeout = 3 * time.Second
	want.Feed.MaxPageSize = 20
	want.Redis.Addr = "localhost:6379"
	want.Tokens.Pepper = "from-dotenv"
	want.RateLimit.Rate = 0.5
	want.Log = Log{Level: "debug", Format: "json"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "MissingFile",
			wantErr: "read config",
		},
		{
			name:    "BadYAML",
			yaml:    "server: [",
			wantErr: "parse config",
		},
		{
			name:    "BadInt",
			yaml:    "{}",
			env:     map[string]string{"CONFESS_PAGE_SIZE": "ten"},
			wantErr: "CONFESS_PAGE_SIZE",
		},
		{
			name:    "BadDuration",
			yaml:    "{}",
			env:     map[string]string{"CONFESS_OP_TIMEOUT": "soon"},
			wantErr: "CONFESS_OP_TIMEOUT",
		},
		{
			name:    "Invalid",
			yaml:    "feed:\n  default_page_size: 100\n",
			wantErr: "default page size 100 must be between 1 and 50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(dir, "confessd.yaml")
			if tt.yaml != "" {
				writeFile(t, path, tt.yaml)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "Default", modify: func(*Config) {}},
		{name: "NoDatabase", modify: func(c *Config) { c.Database.URL = "" }, wantErr: "database url is empty"},
		{name: "ZeroTimeout", modify: func(c *Config) { c.Feed.OpTimeout = 0 }, wantErr: "op timeout"},
		{name: "LongPepper", modify: func(c *Config) { c.Tokens.Pepper = strings.Repeat("p", 65) }, wantErr: "pepper"},
		{name: "NegativeRate", modify: func(c *Config) { c.RateLimit.Rate = -1 }, wantErr: "rate limit"},
		{name: "BadLevel", modify: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log level"},
		{name: "BadFormat", modify: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLog_SlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := Log{Level: in}.SlogLevel()
		if err != nil {
			t.Errorf("SlogLevel(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
