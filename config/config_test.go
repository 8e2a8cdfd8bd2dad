package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sigscan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("Load() = %+v, want %+v", cfg, want)
	}
	if len(cfg.SearchOptions()) != 2 {
		t.Error("SearchOptions() should set window and page size")
	}
}

func TestLoad_FileEnvFlagPrecedence(t *testing.T) {
	path := writeConfig(t, `
window_size: 65536
parallelism: 2
pointer_width: 4
module: engine.dll
output:
  ini: results.ini
  constants: offsets_gen.go
`)

	t.Setenv("SIGSCAN_PARALLELISM", "3")
	t.Setenv("SIGSCAN_OUTPUT_PACKAGE", "gmod")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("module", "", "")
	flags.Int("pointer-width", 8, "")
	if err := flags.Parse([]string{"--module", "client.dll"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoadOptions{
		ConfigFilePath: path,
		Flags: map[string]*pflag.Flag{
			"module":        flags.Lookup("module"),
			"pointer_width": flags.Lookup("pointer-width"),
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.WindowSize != 65536 {
		t.Errorf("WindowSize = %d, want file value", cfg.WindowSize)
	}
	if cfg.PageSize != DefaultConfig().PageSize {
		t.Errorf("PageSize = %d, want default", cfg.PageSize)
	}
	if cfg.Parallelism != 3 {
		t.Errorf("Parallelism = %d, want env value 3", cfg.Parallelism)
	}
	if cfg.Output.Package != "gmod" {
		t.Errorf("Output.Package = %q, want env value", cfg.Output.Package)
	}
	if cfg.Module != "client.dll" {
		t.Errorf("Module = %q, want flag value", cfg.Module)
	}
	// the flag was not changed, so the file wins
	if cfg.PointerWidth != 4 {
		t.Errorf("PointerWidth = %d, want file value 4", cfg.PointerWidth)
	}
	if cfg.Output.INI != "results.ini" || cfg.Output.Constants != "offsets_gen.go" {
		t.Errorf("Output = %+v", cfg.Output)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Load(LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "missing.yaml")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v", err)
	}

	bad := writeConfig(t, "pointer_width: 2\n")
	if _, err := Load(LoadOptions{ConfigFilePath: bad}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("pointer_width 2: err = %v", err)
	}

	broken := writeConfig(t, "window_size: [\n")
	if _, err := Load(LoadOptions{ConfigFilePath: broken}); err == nil {
		t.Error("malformed YAML accepted")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.WindowSize = 0 }},
		{"zero page", func(c *Config) { c.PageSize = 0 }},
		{"pointer width", func(c *Config) { c.PointerWidth = 16 }},
		{"negative parallelism", func(c *Config) { c.Parallelism = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
