// Package config handles application configuration via environment variables.
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const placeholderSpreadsheetID = "your_spreadsheet_id_here"

// LedgerBackend values.
const (
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

// Config holds all configurable values for the app.
type Config struct {
	Env      string
	LogLevel string
	Host     string
	Port     int

	LineChannelAccessToken string
	LineChannelSecret      string

	LedgerBackend     string
	SpreadsheetID     string
	WorksheetName     string
	CredentialsFile   string
	CredentialsJSON   string
	CredentialsBase64 string
	SheetsRPS         float64

	HistoryLimit int
	Timezone     string
	CatalogFile  string
	AdminToken   string

	PushBatchSize  int
	PushInterval   time.Duration
	PushRetries    int
	PushRetryDelay time.Duration
}

var defaults = map[string]any{
	"ENV":                            "development",
	"LOG_LEVEL":                      "",
	"HOST":                           "0.0.0.0",
	"PORT":                           "5000",
	"LEDGER_BACKEND":                 BackendSheets,
	"WORKSHEET_NAME":                 "ポイント記録",
	"GOOGLE_SHEETS_CREDENTIALS_FILE": "credentials.json",
	"SHEETS_RPS":                     "1",
	"HISTORY_LIMIT":                  "10",
	"TIMEZONE":                       "Asia/Tokyo",
	"PUSH_BATCH_SIZE":                "1",
	"PUSH_INTERVAL":                  "5s",
	"PUSH_RETRIES":                   "3",
	"PUSH_RETRY_DELAY":               "2s",
}

// Load reads environment variables, and a .env file in the working directory when present,
// and populates a Config struct. It panics on malformed numeric or duration values
// and on a HISTORY_LIMIT below 1.
func Load() *Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			log.Panicf("Invalid .env file: %v", err)
		}
	}

	return &Config{
		Env:                    v.GetString("ENV"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		Host:                   v.GetString("HOST"),
		Port:                   mustInt(v, "PORT"),
		LineChannelAccessToken: v.GetString("LINE_CHANNEL_ACCESS_TOKEN"),
		LineChannelSecret:      v.GetString("LINE_CHANNEL_SECRET"),
		LedgerBackend:          strings.ToLower(v.GetString("LEDGER_BACKEND")),
		SpreadsheetID:          v.GetString("SPREADSHEET_ID"),
		WorksheetName:          v.GetString("WORKSHEET_NAME"),
		CredentialsFile:        v.GetString("GOOGLE_SHEETS_CREDENTIALS_FILE"),
		CredentialsJSON:        v.GetString("GOOGLE_CREDENTIALS_JSON"),
		CredentialsBase64:      v.GetString("GOOGLE_CREDENTIALS_BASE64"),
		SheetsRPS:              mustFloat(v, "SHEETS_RPS"),
		HistoryLimit:           mustPositiveInt(v, "HISTORY_LIMIT"),
		Timezone:               v.GetString("TIMEZONE"),
		CatalogFile:            v.GetString("CATALOG_FILE"),
		AdminToken:             v.GetString("ADMIN_TOKEN"),
		PushBatchSize:          mustInt(v, "PUSH_BATCH_SIZE"),
		PushInterval:           mustDuration(v, "PUSH_INTERVAL"),
		PushRetries:            mustInt(v, "PUSH_RETRIES"),
		PushRetryDelay:         mustDuration(v, "PUSH_RETRY_DELAY"),
	}
}

func mustInt(v *viper.Viper, key string) int {
	n, err := strconv.Atoi(v.GetString(key))
	if err != nil {
		log.Panicf("Invalid %s: %v", key, err)
	}
	return n
}

func mustPositiveInt(v *viper.Viper, key string) int {
	n := mustInt(v, key)
	if n < 1 {
		log.Panicf("Invalid %s: must be at least 1, got %d", key, n)
	}
	return n
}

func mustFloat(v *viper.Viper, key string) float64 {
	f, err := strconv.ParseFloat(v.GetString(key), 64)
	if err != nil {
		log.Panicf("Invalid %s: %v", key, err)
	}
	return f
}

func mustDuration(v *viper.Viper, key string) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		log.Panicf("Invalid %s: %v", key, err)
	}
	return d
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// LedgerConfigured reports whether a ledger identity is present.
func (c *Config) LedgerConfigured() bool {
	if c.LedgerBackend == BackendMemory {
		return true
	}
	return c.SpreadsheetID != "" && c.SpreadsheetID != placeholderSpreadsheetID
}

// Location resolves Timezone, falling back to the process's local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validation is the result of Validate.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate reports missing settings. Errors disable features; warnings do not.
func (c *Config) Validate() Validation {
	var errs, warnings []string

	if c.LineChannelAccessToken == "" {
		errs = append(errs, "LINE_CHANNEL_ACCESS_TOKEN is not set")
	}
	if c.LineChannelSecret == "" {
		errs = append(errs, "LINE_CHANNEL_SECRET is not set")
	}

	switch c.LedgerBackend {
	case BackendMemory:
		warnings = append(warnings, "LEDGER_BACKEND=memory keeps points only until the process exits")
	case BackendSheets:
		if !c.LedgerConfigured() {
			errs = append(errs, "SPREADSHEET_ID is not set")
		}
		if c.CredentialsJSON == "" && c.CredentialsBase64 == "" {
			if _, err := os.Stat(c.CredentialsFile); errors.Is(err, os.ErrNotExist) {
				errs = append(errs, "Google API credentials file not found: "+c.CredentialsFile)
			}
		}
	default:
		errs = append(errs, "unknown LEDGER_BACKEND: "+c.LedgerBackend)
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			warnings = append(warnings, "unknown TIMEZONE "+c.Timezone+", using local time")
		}
	}

	return Validation{Valid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

// Summary describes the configuration without secrets.
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"env":               c.Env,
		"host":              c.Host,
		"port":              c.Port,
		"ledger_backend":    c.LedgerBackend,
		"worksheet_name":    c.WorksheetName,
		"credentials_file":  c.CredentialsFile,
		"line_configured":   c.LineChannelAccessToken != "" && c.LineChannelSecret != "",
		"sheets_configured": c.LedgerConfigured(),
		"history_limit":     c.HistoryLimit,
		"timezone":          c.Timezone,
		"admin_enabled":     c.AdminToken != "",
	}
}
