package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. LISTINGS_MAX_DELAY.
const EnvPrefix = "LISTINGS"

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. When path is empty a
// scraper.yaml in the working directory or ./config is used if present.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scraper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("product_url_template", d.ProductURLTemplate)
	v.SetDefault("identifiers", d.Identifiers)
	v.SetDefault("min_delay", d.MinDelay)
	v.SetDefault("max_delay", d.MaxDelay)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("user_agents", d.UserAgents)
	v.SetDefault("accept_language", d.AcceptLanguage)
	v.SetDefault("insecure_skip_verify", d.InsecureSkipVerify)
	v.SetDefault("requests_per_minute", d.RequestsPerMinute)
	v.SetDefault("currency_symbol", d.CurrencySymbol)
	v.SetDefault("output_file", d.OutputFile)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("clipboard", d.Clipboard)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("verbose", d.Verbose)

	v.SetDefault("sheets.spreadsheet_id", d.Sheets.SpreadsheetID)
	v.SetDefault("sheets.sheet_name", d.Sheets.SheetName)
	v.SetDefault("sheets.anchor_column", d.Sheets.AnchorColumn)
	v.SetDefault("sheets.client_secret_file", d.Sheets.ClientSecretFile)
	v.SetDefault("sheets.token_file", d.Sheets.TokenFile)
}
