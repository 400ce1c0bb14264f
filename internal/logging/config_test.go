package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"wire":    zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q): got=%v ok=%v want=%v", raw, got, ok, want)
		}
	}
	if _, ok := parseLevel("chatty"); ok {
		t.Fatalf("unknown level must not override")
	}
	if _, ok := parseLevel(""); ok {
		t.Fatalf("empty level must not override")
	}
}

func TestParseBool(t *testing.T) {
	if v, ok := parseBool("true"); !ok || !v {
		t.Fatalf("expected true")
	}
	if _, ok := parseBool("maybe"); ok {
		t.Fatalf("invalid bool must not override")
	}
}

func TestEnvOverridesApply(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "1")
	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel || cfg.Timestamp || !cfg.NoColor {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestSetVerbosityOnlyRaises(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	SetVerbosity(0)
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("verbosity 0 changed level to %v", zerolog.GlobalLevel())
	}
	SetVerbosity(1)
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("verbosity 1: got %v", zerolog.GlobalLevel())
	}
	SetVerbosity(2)
	if zerolog.GlobalLevel() != zerolog.TraceLevel {
		t.Fatalf("verbosity 2: got %v", zerolog.GlobalLevel())
	}
}
