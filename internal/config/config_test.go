package config

import (
	"bytes"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var configEnvKeys = []string{
	"ORIGIN", "DESTINATION", "DEPART_DATE",
	"FLIGHTPROBE_BASE_URL", "FLIGHTPROBE_BROWSER", "FLIGHTPROBE_HEADLESS", "FLIGHTPROBE_LIVE",
	"FLIGHTPROBE_RESOLVE_TIMEOUT", "FLIGHTPROBE_ACTION_TIMEOUT", "FLIGHTPROBE_CONSENT_TIMEOUT",
	"FLIGHTPROBE_RESULTS_TIMEOUT", "FLIGHTPROBE_POLL_INTERVAL", "FLIGHTPROBE_TYPE_DELAY",
	"AWS_ENDPOINT_URL_S3", "AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	"BUCKET_NAME", "S3_PUBLIC_URL",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func validTestConfig() Config {
	return Config{
		Origin:         DefaultOrigin,
		Destination:    DefaultDestination,
		DepartDate:     DefaultDepartDate,
		BaseURL:        "http://127.0.0.1:8080",
		Browser:        "chromium",
		Headless:       true,
		ResolveTimeout: 10 * time.Second,
		ActionTimeout:  5 * time.Second,
		ConsentTimeout: 8 * time.Second,
		ResultsTimeout: time.Minute,
		PollInterval:   100 * time.Millisecond,
		TypeDelay:      40 * time.Millisecond,
	}
}

func TestLoadConfig_DefaultsWhenUnset(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Origin != "Dublin" || cfg.Destination != "London" || cfg.DepartDate != "2026-01-20" {
		t.Fatalf("search defaults = %q/%q/%q, want Dublin/London/2026-01-20", cfg.Origin, cfg.Destination, cfg.DepartDate)
	}
	if cfg.BaseURL != DefaultBaseURL || !cfg.Headless || cfg.Live {
		t.Fatalf("unexpected site defaults: %+v", cfg)
	}
	if cfg.ResolveTimeout != 10*time.Second || cfg.TypeDelay != 40*time.Millisecond {
		t.Fatalf("unexpected wait defaults: resolve=%v type=%v", cfg.ResolveTimeout, cfg.TypeDelay)
	}
	if cfg.ArtifactsEnabled() {
		t.Fatal("artifact storage should be off without AWS settings")
	}
}

func TestLoadConfig_UsesValuesVerbatim(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ORIGIN", "New York, NY")
	t.Setenv("DESTINATION", "Paris (CDG)")
	t.Setenv("DEPART_DATE", "2027-03-05")
	t.Setenv("FLIGHTPROBE_BASE_URL", "http://127.0.0.1:9999/")
	t.Setenv("FLIGHTPROBE_HEADLESS", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Origin != "New York, NY" || cfg.Destination != "Paris (CDG)" || cfg.DepartDate != "2027-03-05" {
		t.Fatalf("values not taken verbatim: %+v", cfg)
	}
	if cfg.BaseURL != "http://127.0.0.1:9999" {
		t.Fatalf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.Headless {
		t.Fatal("FLIGHTPROBE_HEADLESS=false ignored")
	}
	if cfg.LiveSite() {
		t.Fatal("loopback base URL reported as live site")
	}
}

func TestLoadConfig_DerivesPublicURL(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("AWS_ENDPOINT_URL_S3", "https://fly.storage.tigris.dev/")
	t.Setenv("BUCKET_NAME", "flightprobe-artifacts")
	t.Setenv("AWS_ACCESS_KEY_ID", "id")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.AWSPublicURL != "https://fly.storage.tigris.dev/flightprobe-artifacts" {
		t.Fatalf("AWSPublicURL = %q", cfg.AWSPublicURL)
	}
	if !cfg.ArtifactsEnabled() {
		t.Fatal("artifact storage should be on")
	}
}

func TestValidate_TestConfigPasses(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.DepartDate = "20/01/2026"
	cfg.Browser = "netscape"
	cfg.BaseURL = "kayak.com"
	cfg.ResolveTimeout = 0
	cfg.AWSBucketName = "bucket"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, expected := range []string{
		"DEPART_DATE",
		"FLIGHTPROBE_BROWSER",
		"FLIGHTPROBE_BASE_URL",
		"FLIGHTPROBE_RESOLVE_TIMEOUT",
		"AWS_ENDPOINT_URL_S3",
		"AWS_ACCESS_KEY_ID",
	} {
		if !strings.Contains(msg, expected) {
			t.Fatalf("expected validation error to mention %q, got: %v", expected, err)
		}
	}
}

func testValidate_RejectsMalformedDates(t *rapid.T) {
	cfg := validTestConfig()
	cfg.DepartDate = rapid.StringMatching(`[0-9]{1,2}[/.][0-9]{1,2}[/.][0-9]{2,4}`).Draw(t, "date")

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DEPART_DATE") {
		t.Fatalf("expected DEPART_DATE error for %q, got %v", cfg.DepartDate, err)
	}
}

func TestValidate_RejectsMalformedDates(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_RejectsMalformedDates)
}

func testValidate_AcceptsCalendarDates(t *rapid.T) {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, rapid.IntRange(0, 3650).Draw(t, "offset"))
	cfg := validTestConfig()
	cfg.DepartDate = day.Format(isoDate)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(%s): %v", cfg.DepartDate, err)
	}
}

func TestValidate_AcceptsCalendarDates(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_AcceptsCalendarDates)
}

func TestFieldOptions(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	opts := cfg.FieldOptions()
	if opts.ResolveTimeout != cfg.ResolveTimeout || opts.TypeDelay != cfg.TypeDelay ||
		opts.ActionTimeout != cfg.ActionTimeout || opts.PollInterval != cfg.PollInterval {
		t.Fatalf("FieldOptions = %+v", opts)
	}
}

func TestSearchOptions(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	opts := cfg.SearchOptions()
	if opts.BaseURL != cfg.BaseURL || opts.ConsentTimeout != cfg.ConsentTimeout || opts.ResultsTimeout != cfg.ResultsTimeout {
		t.Fatalf("SearchOptions = %+v", opts)
	}
	if opts.Field != cfg.FieldOptions() {
		t.Fatalf("SearchOptions.Field = %+v, want %+v", opts.Field, cfg.FieldOptions())
	}
}

func TestLogValue_RedactsCredentials(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.AWSAccessKeyID = "AKIAEXAMPLE"
	cfg.AWSSecretAccessKey = "super-secret"

	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Info("config", "config", &cfg)
	out := buf.String()
	if strings.Contains(out, "super-secret") || strings.Contains(out, "AKIAEXAMPLE") {
		t.Fatalf("credentials leaked into log: %s", out)
	}
	if !strings.Contains(out, `"origin":"Dublin"`) {
		t.Fatalf("expected origin in log: %s", out)
	}
}

func TestHelperParsers_DefaultOnBadInput(t *testing.T) {
	t.Setenv("CFG_TEST_BOOL", "maybe")
	t.Setenv("CFG_TEST_DUR", "not-a-duration")
	if got := parseBoolOrDefault("CFG_TEST_BOOL", true); got != true {
		t.Fatalf("parseBoolOrDefault fallback mismatch: got=%v want=true", got)
	}
	if got := parseDurationOrDefault("CFG_TEST_DUR", 2*time.Minute); got != 2*time.Minute {
		t.Fatalf("parseDurationOrDefault fallback mismatch: got=%v want=%v", got, 2*time.Minute)
	}
}

func TestGetEnvOrDefault_TrimsWhitespace(t *testing.T) {
	key := "CFG_TEST_STR_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := os.Setenv(key, "   value   "); err != nil {
		t.Fatalf("Setenv failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	if got := getEnvOrDefault(key, "fallback"); got != "value" {
		t.Fatalf("getEnvOrDefault trim mismatch: got=%q want=%q", got, "value")
	}
}
