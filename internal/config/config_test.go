package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envNames {
		if old, ok := os.LookupEnv(env); ok {
			os.Unsetenv(env)
			t.Cleanup(func() { os.Setenv(env, old) })
		}
	}
}

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		os.Setenv(key, value)
		t.Cleanup(func() { os.Unsetenv(key) })
	}
}

func TestLoad_Success(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"BT_ENDPOINT":      "https://bt.test/api",
		"BT_REQ_CODE":      "DA.TEST",
		"BT_FORMAT":        "VERTICAL",
		"PROGRAMFLAG":      "oneshot",
		"FIRMNAME":         "dl000",
		"USERNUMBER":       "1234",
		"REQUEST_LIMIT":    "50",
		"POLL_LIMIT":       "7",
		"LOG_LEVEL":        "DEBUG",
		"BT_TIMEOUT":       "15s",
		"MANDATORY_FIELDS": "ticker,market_sector_des",
		"DATABASE_PATH":    "/tmp/agent.db",
	})

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"Endpoint", cfg.Endpoint, "https://bt.test/api"},
		{"RequestorCode", cfg.RequestorCode, "DA.TEST"},
		{"ResponseFormat", cfg.ResponseFormat, "VERTICAL"},
		{"ProgramFlag", cfg.ProgramFlag, "oneshot"},
		{"FirmName", cfg.FirmName, "dl000"},
		{"UserNumber", cfg.UserNumber, "1234"},
		{"RequestLimit", cfg.RequestLimit, 50},
		{"PollLimit", cfg.PollLimit, 7},
		{"LogLevel", cfg.LogLevel, "debug"},
		{"Timeout", cfg.Timeout, 15 * time.Second},
		{"MandatoryFields", cfg.MandatoryFields, []string{"TICKER", "MARKET_SECTOR_DES"}},
		{"DatabasePath", cfg.DatabasePath, "/tmp/agent.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.expected) {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"BT_ENDPOINT": "https://bt.test/api",
		"BT_REQ_CODE": "DA.TEST",
	})

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"ResponseFormat", cfg.ResponseFormat, "HORIZONTAL"},
		{"RequestDescription", cfg.RequestDescription, "Get Data"},
		{"RequestLimit", cfg.RequestLimit, 500},
		{"PollLimit", cfg.PollLimit, 100},
		{"MaxBatchSize", cfg.MaxBatchSize, 500},
		{"RetryCount", cfg.RetryCount, 0},
		{"Timeout", cfg.Timeout, 60 * time.Second},
		{"LogFormat", cfg.LogFormat, "text"},
		{"StatusCacheTTL", cfg.StatusCacheTTL, time.Hour},
		{"FilePrefix", cfg.FilePrefix, "BT_"},
		{"GetDataExt", cfg.GetDataExt, "gd"},
		{"GetHistoryExt", cfg.GetHistoryExt, "gh"},
		{"FileDestination", cfg.FileDestination, ""},
		{"MandatoryFields", len(cfg.MandatoryFields), len(DefaultMandatoryFields)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.expected) {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "agent.yaml")
	yaml := `
bt_endpoint: https://file.test/api
bt_req_code: FROM.FILE
poll_limit: 3
redis_addr: localhost:6379
file_destination: /landing
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	// environment wins over the file
	setEnv(t, map[string]string{"BT_REQ_CODE": "FROM.ENV"})

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Endpoint != "https://file.test/api" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.RequestorCode != "FROM.ENV" {
		t.Errorf("RequestorCode = %q, want FROM.ENV", cfg.RequestorCode)
	}
	if cfg.PollLimit != 3 || cfg.RedisAddr != "localhost:6379" || cfg.FileDestination != "/landing" {
		t.Errorf("file values not applied: %+v", cfg)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("Load() with a missing explicit file expected error, got nil")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    map[string]string
		wantErrText string
	}{
		{
			name:        "missing all required",
			setupEnv:    map[string]string{},
			wantErrText: "missing required configuration: BT_ENDPOINT, BT_REQ_CODE",
		},
		{
			name:        "missing BT_ENDPOINT",
			setupEnv:    map[string]string{"BT_REQ_CODE": "test"},
			wantErrText: "BT_ENDPOINT",
		},
		{
			name:        "missing BT_REQ_CODE",
			setupEnv:    map[string]string{"BT_ENDPOINT": "https://bt.test"},
			wantErrText: "BT_REQ_CODE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setEnv(t, tt.setupEnv)

			_, err := Load("", nil)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrText) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrText)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad endpoint", map[string]string{"BT_ENDPOINT": "not a url"}},
		{"negative limit", map[string]string{"POLL_LIMIT": "-1"}},
		{"unknown log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setEnv(t, map[string]string{
				"BT_ENDPOINT": "https://bt.test",
				"BT_REQ_CODE": "test",
			})
			setEnv(t, tt.env)

			_, err := Load("", nil)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), "invalid configuration") {
				t.Errorf("Load() error = %q, want a validation error", err.Error())
			}
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"BT_ENDPOINT": "https://bt.test",
		"BT_REQ_CODE": "test",
		"LOG_LEVEL":   "warn",
	})

	cfg, err := Load("", map[string]any{"log_level": "DEBUG"})
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}

	_, err = Load("", map[string]any{"log_level": "loud"})
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Load() with a bad override error = %v, want a validation error", err)
	}
}

func TestStaticOptions(t *testing.T) {
	cfg := &Config{ProgramFlag: "oneshot", FirmName: "dl000"}
	opts := cfg.StaticOptions()
	if opts["PROGRAMFLAG"] != "oneshot" || opts["FIRMNAME"] != "dl000" || opts["USERNUMBER"] != "" {
		t.Errorf("StaticOptions() = %v", opts)
	}
}
