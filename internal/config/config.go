package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultMandatoryFields are requested for every batch on top of the item mnemonics
var DefaultMandatoryFields = []string{
	"INDX_FREQ", "PX_METHOD", "LONG_COMP_NAME",
	"SECURITY_TYP", "SECURITY_DES", "TRADE_STATUS",
	"SECURITY_NAME", "NAME",
	"TRADING_DAY_START_TIME_EOD",
	"TRADING_DAY_END_TIME_EOD",
	"LAST_UPDATE_DATE_EOD",
	"EXCHANGE_DELAY", "PX_CLOSE_DT",
	"HISTORY_START_DT",
	"EQY_INIT_PO_DT", "ISSUE_DT",
	"CPN_FREQ", "FUND_PRICING_FREQ",
	"EXCH_CODE", "TICKER", "MARKET_SECTOR_DES",
	"PRICING_SOURCE", "COUNTRY_ISO", "MARKET_STATUS",
}

// Config holds all configuration for one agent run.
type Config struct {
	DatabasePath string `mapstructure:"database_path" validate:"required"`

	// Batch transport
	Endpoint           string        `mapstructure:"bt_endpoint" validate:"required,url"`
	RequestorCode      string        `mapstructure:"bt_req_code" validate:"required"`
	ResponseFormat     string        `mapstructure:"bt_format" validate:"required"`
	RequestDescription string        `mapstructure:"request_description"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"min=0"`
	RetryCount         int           `mapstructure:"retry_count" validate:"min=0"`
	CompressRequests   bool          `mapstructure:"compress_requests"`

	// Static request options
	ProgramFlag    string `mapstructure:"programflag"`
	FirmName       string `mapstructure:"firmname"`
	UserNumber     string `mapstructure:"usernumber"`
	CompressOption string `mapstructure:"compress"`

	MandatoryFields []string `mapstructure:"mandatory_fields"`

	// Work limits per run
	RequestLimit int `mapstructure:"request_limit" validate:"min=0"`
	PollLimit    int `mapstructure:"poll_limit" validate:"min=0"`
	MaxBatchSize int `mapstructure:"max_batch_size" validate:"min=0"`

	// Vendor call rates, per second; zero disables the limit
	SubmitRate   float64 `mapstructure:"submit_rate" validate:"min=0"`
	StatusRate   float64 `mapstructure:"status_rate" validate:"min=0"`
	ResponseRate float64 `mapstructure:"response_rate" validate:"min=0"`
	RateBurst    int     `mapstructure:"rate_burst" validate:"min=0"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=text json"`

	// Return-status cache; Redis is optional
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db" validate:"min=0"`
	StatusCacheTTL time.Duration `mapstructure:"status_cache_ttl" validate:"min=0"`

	// Landing directory for vendor data files; empty disables copying
	FileDestination string `mapstructure:"file_destination"`
	FilePrefix      string `mapstructure:"file_prefix"`
	GetDataExt      string `mapstructure:"getdata_ext"`
	GetHistoryExt   string `mapstructure:"gethistory_ext"`
}

// envNames maps config keys to the environment variables that set them
var envNames = map[string]string{
	"database_path":       "DATABASE_PATH",
	"bt_endpoint":         "BT_ENDPOINT",
	"bt_req_code":         "BT_REQ_CODE",
	"bt_format":           "BT_FORMAT",
	"request_description": "REQUEST_DESCRIPTION",
	"timeout":             "BT_TIMEOUT",
	"retry_count":         "BT_RETRY_COUNT",
	"compress_requests":   "BT_COMPRESS_REQUESTS",
	"programflag":         "PROGRAMFLAG",
	"firmname":            "FIRMNAME",
	"usernumber":          "USERNUMBER",
	"compress":            "COMPRESS",
	"mandatory_fields":    "MANDATORY_FIELDS",
	"request_limit":       "REQUEST_LIMIT",
	"poll_limit":          "POLL_LIMIT",
	"max_batch_size":      "MAX_BATCH_SIZE",
	"submit_rate":         "BT_SUBMIT_RATE",
	"status_rate":         "BT_STATUS_RATE",
	"response_rate":       "BT_RESPONSE_RATE",
	"rate_burst":          "BT_RATE_BURST",
	"log_level":           "LOG_LEVEL",
	"log_format":          "LOG_FORMAT",
	"redis_addr":          "REDIS_ADDR",
	"redis_password":      "REDIS_PASSWORD",
	"redis_db":            "REDIS_DB",
	"status_cache_ttl":    "STATUS_CACHE_TTL",
	"file_destination":    "BT_FILE_PATH",
	"file_prefix":         "BT_FILE_PREFIX",
	"getdata_ext":         "BT_GETDATA_EXT",
	"gethistory_ext":      "BT_GETHISTORY_EXT",
}

var validate = validator.New()

// Load reads configuration from a .env file, an optional YAML config file and
// environment variables. Environment variables take precedence over the file.
//
// When configFile is empty, transportagent.yaml is looked up in the working
// directory and in $HOME/.transportagent; a missing file is not an error.
//
// overrides, keyed by config key, win over every other source and are
// validated like them.
//
// Required environment variables (or file keys):
//   - BT_ENDPOINT
//   - BT_REQ_CODE
func Load(configFile string, overrides map[string]any) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("transportagent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.transportagent")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	var missing []string
	if config.Endpoint == "" {
		missing = append(missing, "BT_ENDPOINT")
	}
	if config.RequestorCode == "" {
		missing = append(missing, "BT_REQ_CODE")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	config.LogLevel = strings.ToLower(config.LogLevel)
	config.LogFormat = strings.ToLower(config.LogFormat)
	config.MandatoryFields = normalizeFields(config.MandatoryFields)

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_path", "transportagent.db")
	v.SetDefault("bt_format", "HORIZONTAL")
	v.SetDefault("request_description", "Get Data")
	v.SetDefault("timeout", 60*time.Second)
	v.SetDefault("retry_count", 0)
	v.SetDefault("mandatory_fields", DefaultMandatoryFields)
	v.SetDefault("request_limit", 500)
	v.SetDefault("poll_limit", 100)
	v.SetDefault("max_batch_size", 500)
	v.SetDefault("submit_rate", 1)
	v.SetDefault("status_rate", 5)
	v.SetDefault("response_rate", 2)
	v.SetDefault("rate_burst", 1)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("status_cache_ttl", time.Hour)
	v.SetDefault("file_prefix", "BT_")
	v.SetDefault("getdata_ext", "gd")
	v.SetDefault("gethistory_ext", "gh")
}

// normalizeFields upper-cases mnemonics and splits values that arrived as a
// single comma or space separated string
func normalizeFields(fields []string) []string {
	var out []string
	for _, f := range fields {
		for _, part := range strings.FieldsFunc(f, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

// StaticOptions returns the request options sent with every batch
func (c *Config) StaticOptions() map[string]string {
	return map[string]string{
		"PROGRAMFLAG": c.ProgramFlag,
		"FIRMNAME":    c.FirmName,
		"USERNUMBER":  c.UserNumber,
		"COMPRESS":    c.CompressOption,
	}
}
