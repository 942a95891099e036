package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// IDPlaceholder is replaced by the product identifier in ProductURLTemplate.
const IDPlaceholder = "{id}"

var columnPattern = regexp.MustCompile(`^[A-Z]{1,3}$`)

// Config holds scraper configuration.
type Config struct {
	ProductURLTemplate string        `mapstructure:"product_url_template"`
	Identifiers        []string      `mapstructure:"identifiers"`
	MinDelay           time.Duration `mapstructure:"min_delay"`
	MaxDelay           time.Duration `mapstructure:"max_delay"`
	Timeout            time.Duration `mapstructure:"timeout"`
	UserAgents         []string      `mapstructure:"user_agents"`
	AcceptLanguage     string        `mapstructure:"accept_language"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	RequestsPerMinute  int           `mapstructure:"requests_per_minute"`
	CurrencySymbol     string        `mapstructure:"currency_symbol"`
	OutputFile         string        `mapstructure:"output_file"`
	OutputFormat       string        `mapstructure:"output_format"` // csv, json, xlsx, dual, or none
	Clipboard          bool          `mapstructure:"clipboard"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
	Verbose            bool          `mapstructure:"verbose"`
	Sheets             SheetsConfig  `mapstructure:"sheets"`
}

// SheetsConfig describes the upload destination. Uploading is skipped when
// SpreadsheetID is empty.
type SheetsConfig struct {
	SpreadsheetID    string `mapstructure:"spreadsheet_id"`
	SheetName        string `mapstructure:"sheet_name"`
	AnchorColumn     string `mapstructure:"anchor_column"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
	TokenFile        string `mapstructure:"token_file"`
}

// DefaultConfig returns the settings used for the amazon.in catalogue run.
func DefaultConfig() *Config {
	return &Config{
		ProductURLTemplate: "https://www.amazon.in/dp/" + IDPlaceholder,
		Identifiers:        DefaultIdentifiers(),
		MinDelay:           1 * time.Second,
		MaxDelay:           3 * time.Second,
		Timeout:            10 * time.Second,
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.93 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.107 Safari/537.36",
		},
		AcceptLanguage:     "en-US,en;q=0.9",
		InsecureSkipVerify: true,
		RequestsPerMinute:  0,
		CurrencySymbol:     "₹",
		OutputFile:         "output/amazon_products.csv",
		OutputFormat:       "csv",
		Clipboard:          false,
		MetricsAddr:        "",
		Verbose:            false,
		Sheets: SheetsConfig{
			SheetName:        "Python_dump",
			AnchorColumn:     "A",
			ClientSecretFile: "client_secret.json",
			TokenFile:        "token.json",
		},
	}
}

// ProductURL substitutes id into the product URL template.
func (c *Config) ProductURL(id string) string {
	return strings.ReplaceAll(c.ProductURLTemplate, IDPlaceholder, url.PathEscape(id))
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.ProductURLTemplate == "" {
		return fmt.Errorf("product URL template cannot be empty")
	}
	if !strings.Contains(c.ProductURLTemplate, IDPlaceholder) {
		return fmt.Errorf("product URL template must contain %s", IDPlaceholder)
	}
	parsedURL, err := url.Parse(c.ProductURL("X"))
	if err != nil {
		return fmt.Errorf("invalid product URL template: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("product URL template must include a host")
	}

	if len(c.Identifiers) == 0 {
		return fmt.Errorf("identifiers cannot be empty")
	}
	for i, id := range c.Identifiers {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("identifier %d is blank", i)
		}
	}

	if c.MinDelay < 0 {
		return fmt.Errorf("min delay cannot be negative")
	}
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("max delay (%s) cannot be below min delay (%s)", c.MaxDelay, c.MinDelay)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("user agents cannot be empty")
	}
	for _, ua := range c.UserAgents {
		if strings.TrimSpace(ua) == "" {
			return fmt.Errorf("user agent cannot be blank")
		}
	}
	if c.AcceptLanguage == "" {
		return fmt.Errorf("accept language cannot be empty")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests per minute cannot be negative")
	}

	switch c.OutputFormat {
	case "csv", "json", "xlsx", "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	case "none":
	default:
		return fmt.Errorf("output format must be csv, json, xlsx, dual, or none")
	}

	if c.Sheets.SpreadsheetID != "" {
		if c.Sheets.SheetName == "" {
			return fmt.Errorf("sheet name cannot be empty")
		}
		if !columnPattern.MatchString(c.Sheets.AnchorColumn) {
			return fmt.Errorf("anchor column %q must be a column letter", c.Sheets.AnchorColumn)
		}
		if c.Sheets.ClientSecretFile == "" {
			return fmt.Errorf("client secret file cannot be empty")
		}
		if c.Sheets.TokenFile == "" {
			return fmt.Errorf("token file cannot be empty")
		}
	}

	return nil
}
