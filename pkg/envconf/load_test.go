package envconf

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

type dbConf struct {
	DSN     string        `env:"T_DSN"`
	Timeout time.Duration `env:"T_TIMEOUT" default:"3s"`
}

type appConf struct {
	Port     uint16     `env:"T_PORT" default:"8080"`
	Level    slog.Level `env:"T_LEVEL" default:"INFO"`
	Debug    bool       `env:"T_DEBUG" default:"false"`
	Ratio    float64    `env:"T_RATIO" default:"0.5"`
	Optional string     `env:"T_OPTIONAL" default:""`
	Limit    *int       `env:"T_LIMIT" default:""`
	Ignored  string     `env:"-"`
	DB       dbConf
	Extra    *dbConf
}

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadFunc_DefaultsAndOverrides(t *testing.T) {
	t.Parallel()

	var cfg appConf
	err := LoadFunc(&cfg, mapLookup(map[string]string{
		"T_DSN":   "postgres://x",
		"T_LEVEL": "DEBUG",
		"T_LIMIT": "9",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 8080 || cfg.Level != slog.LevelDebug || cfg.Debug || cfg.Ratio != 0.5 {
		t.Fatalf("unexpected scalars: %+v", cfg)
	}
	if cfg.Optional != "" {
		t.Fatalf("optional should stay empty, got %q", cfg.Optional)
	}
	if cfg.Limit == nil || *cfg.Limit != 9 {
		t.Fatalf("limit: want 9, got %v", cfg.Limit)
	}
	if cfg.DB.DSN != "postgres://x" || cfg.DB.Timeout != 3*time.Second {
		t.Fatalf("nested: %+v", cfg.DB)
	}
	if cfg.Extra == nil || cfg.Extra.DSN != "postgres://x" {
		t.Fatalf("pointer nested: %+v", cfg.Extra)
	}
}

func TestLoadFunc_MissingRequired(t *testing.T) {
	t.Parallel()

	var cfg appConf
	err := LoadFunc(&cfg, mapLookup(nil))
	if !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("want ErrMissingRequired, got %v", err)
	}
}

func TestLoadFunc_BadValue(t *testing.T) {
	t.Parallel()

	var cfg appConf
	err := LoadFunc(&cfg, mapLookup(map[string]string{"T_DSN": "x", "T_PORT": "not-a-port"}))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFunc_RejectsNonPointer(t *testing.T) {
	t.Parallel()

	if err := LoadFunc(appConf{}, mapLookup(nil)); err == nil {
		t.Fatal("expected error for non-pointer destination")
	}
	if err := LoadFunc(nil, mapLookup(nil)); err == nil {
		t.Fatal("expected error for nil destination")
	}
}
