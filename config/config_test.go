package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty template",
			mutate: func(cfg *Config) {
				cfg.ProductURLTemplate = ""
			},
			wantErr: "product URL template",
		},
		{
			name: "template without placeholder",
			mutate: func(cfg *Config) {
				cfg.ProductURLTemplate = "https://www.amazon.in/dp/"
			},
			wantErr: "{id}",
		},
		{
			name: "template without host",
			mutate: func(cfg *Config) {
				cfg.ProductURLTemplate = "/dp/{id}"
			},
			wantErr: "host",
		},
		{
			name: "no identifiers",
			mutate: func(cfg *Config) {
				cfg.Identifiers = nil
			},
			wantErr: "identifiers",
		},
		{
			name: "blank identifier",
			mutate: func(cfg *Config) {
				cfg.Identifiers = []string{"B000GISTZ4", " "}
			},
			wantErr: "identifier 1",
		},
		{
			name: "inverted delay window",
			mutate: func(cfg *Config) {
				cfg.MinDelay = 3 * time.Second
				cfg.MaxDelay = time.Second
			},
			wantErr: "max delay",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "no user agents",
			mutate: func(cfg *Config) {
				cfg.UserAgents = nil
			},
			wantErr: "user agents",
		},
		{
			name: "unknown output format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "parquet"
			},
			wantErr: "output format",
		},
		{
			name: "bad anchor column",
			mutate: func(cfg *Config) {
				cfg.Sheets.SpreadsheetID = "sheet-id"
				cfg.Sheets.AnchorColumn = "a1"
			},
			wantErr: "anchor column",
		},
		{
			name: "missing token file",
			mutate: func(cfg *Config) {
				cfg.Sheets.SpreadsheetID = "sheet-id"
				cfg.Sheets.TokenFile = ""
			},
			wantErr: "token file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if len(cfg.Identifiers) != 78 {
		t.Fatalf("default identifiers = %d, want 78", len(cfg.Identifiers))
	}
}

func TestNoneFormatSkipsOutputFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputFormat = "none"
	cfg.OutputFile = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("none format should not need an output file, got %v", err)
	}
}

func TestProductURL(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ProductURL("B000GISTZ4"); got != "https://www.amazon.in/dp/B000GISTZ4" {
		t.Fatalf("ProductURL = %q", got)
	}
	if got := cfg.ProductURL("a/b"); got != "https://www.amazon.in/dp/a%2Fb" {
		t.Fatalf("ProductURL should escape the identifier, got %q", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinDelay != time.Second || cfg.MaxDelay != 3*time.Second {
		t.Fatalf("delay window = %s..%s, want 1s..3s", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.Sheets.SheetName != "Python_dump" {
		t.Fatalf("sheet name = %q", cfg.Sheets.SheetName)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded defaults should validate, got %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scraper.yaml")
	content := `
identifiers:
  - B000GISTZ4
  - B091HTLXL3
max_delay: 5s
output_format: xlsx
output_file: out/products.xlsx
sheets:
  spreadsheet_id: from-file
  sheet_name: Dump
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LISTINGS_SHEETS_SPREADSHEET_ID", "from-env")
	t.Setenv("LISTINGS_TIMEOUT", "15s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Identifiers) != 2 || cfg.Identifiers[1] != "B091HTLXL3" {
		t.Fatalf("identifiers = %v", cfg.Identifiers)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Fatalf("max delay = %s, want 5s", cfg.MaxDelay)
	}
	if cfg.Timeout != 15*time.Second {
		t.Fatalf("timeout = %s, want 15s", cfg.Timeout)
	}
	if cfg.Sheets.SpreadsheetID != "from-env" {
		t.Fatalf("spreadsheet id = %q, want env override", cfg.Sheets.SpreadsheetID)
	}
	if cfg.Sheets.SheetName != "Dump" || cfg.Sheets.AnchorColumn != "A" {
		t.Fatalf("sheets = %+v", cfg.Sheets)
	}
	if cfg.OutputFormat != "xlsx" {
		t.Fatalf("output format = %q", cfg.OutputFormat)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}
