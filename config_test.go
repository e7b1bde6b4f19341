package aside

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Separator != ":" || cfg.DefaultTTL != 0 || cfg.Prefix != "" {
		t.Fatalf("DefaultConfig = %+v", cfg)
	}
	if cfg.Allowed != AllActions() || cfg.Logged != (Actions{}) {
		t.Fatalf("DefaultConfig flags = %+v", cfg)
	}
}

func TestWithPrefixExtends(t *testing.T) {
	cfg := DefaultConfig().WithPrefix("app").WithSeparator(".").WithPrefix("user")
	if cfg.Prefix != "app.user" {
		t.Fatalf("Prefix = %q", cfg.Prefix)
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
separator: "/"
defaultExpirySeconds: 60
prefix: user
allowed:
  remove: false
logged:
  read: true
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	want := Config{
		Separator:  "/",
		DefaultTTL: time.Minute,
		Prefix:     "user",
		Allowed:    Actions{Read: true, Write: true},
		Logged:     Actions{Read: true},
	}
	if cfg != want {
		t.Fatalf("ParseConfig = %+v, want %+v", cfg, want)
	}
}

func TestParseConfigEmptyAndInvalid(t *testing.T) {
	cfg, err := ParseConfig(nil)
	if err != nil || cfg != DefaultConfig() {
		t.Fatalf("empty: %+v, %v", cfg, err)
	}
	if _, err := ParseConfig([]byte("ttl: 5\n")); err == nil {
		t.Fatalf("unknown key accepted")
	}
	if _, err := ParseConfig([]byte("defaultExpirySeconds: -1\n")); err == nil {
		t.Fatalf("negative expiry accepted")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	if err := os.WriteFile(path, []byte("prefix: order\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil || cfg.Prefix != "order" {
		t.Fatalf("LoadConfig = %+v, %v", cfg, err)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestActionString(t *testing.T) {
	for a, want := range map[Action]string{ActionRead: "read", ActionWrite: "write", ActionRemove: "remove"} {
		if a.String() != want {
			t.Fatalf("%d.String() = %q", a, a.String())
		}
	}
}
