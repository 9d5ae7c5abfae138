package config

// DefaultExcludedPrefixes lists URL prefixes of browser-internal and
// extension pages that are never tracked.
var DefaultExcludedPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"edge://",
	"about:",
}

// DefaultConfig returns a Config populated with all default values.
//
// Storage.Dir is left empty; ResolveDirs fills in the XDG data directory.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:        BackendJSON,
			JSONFile:       "tabtime.json",
			SQLiteFile:     "tabtime.db",
			QuotaBytes:     0,
			SoftLimitBytes: 5 * 1024 * 1024,
		},
		Retention: RetentionConfig{
			Days:           90,
			AggressiveDays: 30,
		},
		Tracking: TrackingConfig{
			ExcludedPrefixes: append([]string(nil), DefaultExcludedPrefixes...),
		},
		Timer: TimerConfig{
			CheckpointSeconds: 30,
			StaleAfterHours:   7 * 24,
		},
		Stats: StatsConfig{
			MaxInferredMinutes:     180,
			DisabledDefaultSeconds: 30,
			Split:                  SplitProportional,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
