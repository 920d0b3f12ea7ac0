package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "thresholds.yml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write thresholds: %v", err)
	}
	return p
}

func TestDefaultThresholdsAreValid(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadThresholds_EmptyPathUsesDefaults(t *testing.T) {
	th, err := LoadThresholds("")
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if th.Pricing.MinMultiplier != 0.7 || th.Pricing.MaxMultiplier != 2.5 {
		t.Errorf("clamp = [%v, %v], want [0.7, 2.5]", th.Pricing.MinMultiplier, th.Pricing.MaxMultiplier)
	}
}

func TestLoadThresholds_OverridesDefaults(t *testing.T) {
	p := writeFile(t, `
validation:
  max_fare: 5000
pricing:
  urgency_threshold: 90m
  peak_hours: [6, 7, 8]
normalization:
  seat_type_aliases:
    ac_sleeper: sleeper
`)
	th, err := LoadThresholds(p)
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if th.Validation.MaxFare != 5000 {
		t.Errorf("MaxFare = %v, want 5000", th.Validation.MaxFare)
	}
	if th.Pricing.UrgencyThreshold != 90*time.Minute {
		t.Errorf("UrgencyThreshold = %v, want 90m", th.Pricing.UrgencyThreshold)
	}
	if len(th.Pricing.PeakHours) != 3 {
		t.Errorf("PeakHours = %v, want 3 entries", th.Pricing.PeakHours)
	}
	if th.Normalization.SeatTypeAliases["ac_sleeper"] != "sleeper" {
		t.Errorf("alias ac_sleeper missing")
	}
	if th.Normalization.SeatTypeAliases["deluxe"] != "premium" {
		t.Errorf("default alias deluxe lost after merge")
	}
}

func TestLoadThresholds_Timezone(t *testing.T) {
	th, err := LoadThresholds(writeFile(t, "pricing:\n  timezone: Asia/Kolkata\n"))
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if th.Pricing.Timezone != "Asia/Kolkata" {
		t.Errorf("Timezone = %q", th.Pricing.Timezone)
	}
	if d := DefaultThresholds().Pricing.Timezone; d != "UTC" {
		t.Errorf("default timezone = %q, want UTC", d)
	}
}

func TestLoadThresholds_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid yaml", "pricing: [[["},
		{"clamp inverted", "pricing:\n  min_multiplier: 2\n  max_multiplier: 1.5\n"},
		{"negative max fare", "validation:\n  max_fare: -1\n"},
		{"peak hour out of range", "pricing:\n  peak_hours: [25]\n"},
		{"peak overlaps off-peak", "pricing:\n  peak_hours: [22]\n"},
		{"confidence above one", "pricing:\n  confidence:\n    baseline: 0.8\n    bonus: 0.5\n"},
		{"popularity pushes confidence above one", "pricing:\n  confidence:\n    popularity_weight: 0.2\n"},
		{"unknown timezone", "pricing:\n  timezone: Mars/Olympus\n"},
		{"empty timezone", "pricing:\n  timezone: \"\"\n"},
		{"unknown alias target", "normalization:\n  seat_type_aliases:\n    lounge: firstclass\n"},
		{"early bird before urgency", "pricing:\n  early_bird_threshold: 1h\n"},
		{"no zero band", "pricing:\n  distance_bands:\n    - {min_km: 100, multiplier: 1.1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadThresholds(writeFile(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperr.IsConfiguration(err) {
				t.Errorf("error %v is not a ConfigurationError", err)
			}
		})
	}
}

func TestLoadThresholds_MissingFile(t *testing.T) {
	_, err := LoadThresholds(filepath.Join(t.TempDir(), "nope.yml"))
	if !apperr.IsConfiguration(err) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestLoadThresholds_SortsBands(t *testing.T) {
	p := writeFile(t, "pricing:\n  distance_bands:\n    - {min_km: 500, multiplier: 1.2}\n    - {min_km: 0, multiplier: 1}\n")
	th, err := LoadThresholds(p)
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if th.Pricing.DistanceBands[0].MinKm != 0 {
		t.Errorf("bands not sorted: %+v", th.Pricing.DistanceBands)
	}
}

func TestLoad_RequiresDBSettingsForNetworkDrivers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "etl")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "busdb")

	_, err := Load()
	if !apperr.IsConfiguration(err) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestLoad_SQLiteNeedsNoNetworkSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "test.db")
	t.Setenv("PIPELINE_WORKERS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB.Driver != DriverSQLite || cfg.DB.Path != "test.db" {
		t.Errorf("DB = %+v", cfg.DB)
	}
	if cfg.Workers != 1 {
		t.Errorf("Workers = %d, want clamped to 1", cfg.Workers)
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := Load(); !apperr.IsConfiguration(err) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}
