// Package config resolves agent identity, locates the state directory,
// and loads/persists feature toggles and enforcement settings.
//
// Configuration lives in <state>/config.yaml and is read once at process
// start. Environment variables with the TM_ prefix override file values
// (TM_TELEMETRY, TM_MINIMAL_MODE, ...). Writes go back through Save,
// which holds the advisory lock so concurrent processes never interleave
// partial files.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/taskmesh/taskmesh/internal/debug"
	"github.com/taskmesh/taskmesh/internal/lockfile"
)

// Well-known names under the project state directory.
const (
	StateDirName        = ".taskmesh"
	DBFileName          = "tasks.db"
	ConfigFileName      = "config.yaml"
	EnforcementFileName = "enforcement.json"
	LockFileName        = ".lock"
	BackupsDirName      = "backups"
	TelemetryDirName    = "telemetry"
	TemplatesDirName    = "templates"
)

// Feature toggle keys. Every toggle defaults to enabled; minimal_mode
// forces all of them off regardless of their individual values.
const (
	FeatureSuccessCriteria     = "success_criteria"
	FeatureFeedback            = "feedback"
	FeatureTelemetry           = "telemetry"
	FeatureCompletionSummaries = "completion_summaries"
	FeatureTimeTracking        = "time_tracking"
	FeatureDeadlines           = "deadlines"
)

// Features lists every toggle that --enable/--disable accepts, in the
// order config --show prints them.
var Features = []string{
	FeatureSuccessCriteria,
	FeatureFeedback,
	FeatureTelemetry,
	FeatureCompletionSummaries,
	FeatureTimeTracking,
	FeatureDeadlines,
}

// Enforcement gate levels.
const (
	EnforcementStrict   = "strict"
	EnforcementStandard = "standard"
	EnforcementAdvisory = "advisory"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Call once at
// process start, before identity, toggles, or enforcement settings are
// read.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	// Explicitly locate <state>/config.yaml so viper never picks up an
	// unrelated config.yaml from a search path.
	configFileSet := false
	if dir, found := FindStateDir(); found {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			configFileSet = true
		}
	}

	// TM_AGENT_ID, TM_TELEMETRY, TM_ENFORCEMENT_LEVEL, ... map onto the
	// corresponding dotted/hyphenated keys.
	v.SetEnvPrefix("TM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		debug.Logf("loaded config from %s", v.ConfigFileUsed())
	} else {
		debug.Logf("no config.yaml found; using defaults and environment")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	for _, feature := range Features {
		v.SetDefault(feature, true)
	}
	v.SetDefault("minimal_mode", false)

	v.SetDefault("enforcement.level", EnforcementStandard)
	v.SetDefault("enforcement.auto_detect", true)
	v.SetDefault("enforcement.enforced", false)

	v.SetDefault("agent-id", "")
	v.SetDefault("db-path", "")
	v.SetDefault("lock-timeout", "5s")
}

// FindStateDir walks up from the working directory looking for an
// existing state directory. The boolean reports whether one was found;
// when false the returned path is the would-be location under the
// working directory, so callers can create it.
func FindStateDir() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return StateDirName, false
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		stateDir := filepath.Join(dir, StateDirName)
		if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
			return stateDir, true
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	return filepath.Join(cwd, StateDirName), false
}

// DBPath resolves the database file location: the --db flag, then
// TM_DB_PATH, then tasks.db inside the resolved state directory.
func DBPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := GetString("db-path"); p != "" {
		return p
	}
	dir, _ := FindStateDir()
	return filepath.Join(dir, DBFileName)
}

// StateDirFor returns the state directory that owns a database path.
// With TM_DB_PATH pointing somewhere custom, the lock, telemetry, and
// mirrors follow the database rather than the working directory.
func StateDirFor(dbPath string) string {
	return filepath.Dir(dbPath)
}

// LockPath returns the advisory-lock sentinel for a state directory.
func LockPath(stateDir string) string {
	return filepath.Join(stateDir, LockFileName)
}

// ResolveAgent resolves the acting agent identity: the --agent flag,
// then TM_AGENT_ID, then "default".
func ResolveAgent(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if id := GetString("agent-id"); id != "" {
		return id
	}
	return "default"
}

// FeatureEnabled reports whether a toggle is on. minimal_mode wins over
// every individual flag.
func FeatureEnabled(name string) bool {
	if v == nil {
		return true
	}
	if v.GetBool("minimal_mode") {
		return false
	}
	return v.GetBool(name)
}

// IsFeature reports whether name is a recognized toggle key.
func IsFeature(name string) bool {
	for _, f := range Features {
		if f == name {
			return true
		}
	}
	return false
}

// MinimalMode reports whether every optional feature is forced off.
func MinimalMode() bool {
	return GetBool("minimal_mode")
}

// EnforcementLevel returns the configured gate level, falling back to
// standard when the stored value is unrecognized.
func EnforcementLevel() string {
	switch lvl := GetString("enforcement.level"); lvl {
	case EnforcementStrict, EnforcementStandard, EnforcementAdvisory:
		return lvl
	default:
		return EnforcementStandard
	}
}

// IsEnforcementLevel reports whether name is a valid gate level.
func IsEnforcementLevel(name string) bool {
	switch name {
	case EnforcementStrict, EnforcementStandard, EnforcementAdvisory:
		return true
	}
	return false
}

// fileConfig is the document shape persisted to config.yaml. Only the
// keys users can set are written; runtime-only settings stay out of the
// file.
type fileConfig struct {
	SuccessCriteria     bool              `yaml:"success_criteria"`
	Feedback            bool              `yaml:"feedback"`
	Telemetry           bool              `yaml:"telemetry"`
	CompletionSummaries bool              `yaml:"completion_summaries"`
	TimeTracking        bool              `yaml:"time_tracking"`
	Deadlines           bool              `yaml:"deadlines"`
	MinimalMode         bool              `yaml:"minimal_mode"`
	Enforcement         enforcementMirror `yaml:"enforcement"`
}

// enforcementMirror holds the enforcement keys; the same shape is
// mirrored to enforcement.json for consumers that predate config.yaml.
type enforcementMirror struct {
	Level      string `yaml:"level" json:"enforcement_level"`
	AutoDetect bool   `yaml:"auto_detect" json:"auto_detect"`
	Enforced   bool   `yaml:"enforced" json:"enforced"`
}

func snapshot() fileConfig {
	return fileConfig{
		SuccessCriteria:     GetBool(FeatureSuccessCriteria),
		Feedback:            GetBool(FeatureFeedback),
		Telemetry:           GetBool(FeatureTelemetry),
		CompletionSummaries: GetBool(FeatureCompletionSummaries),
		TimeTracking:        GetBool(FeatureTimeTracking),
		Deadlines:           GetBool(FeatureDeadlines),
		MinimalMode:         GetBool("minimal_mode"),
		Enforcement: enforcementMirror{
			Level:      EnforcementLevel(),
			AutoDetect: GetBool("enforcement.auto_detect"),
			Enforced:   GetBool("enforcement.enforced"),
		},
	}
}

// Save persists the current toggle and enforcement state to
// <stateDir>/config.yaml and mirrors the enforcement keys to
// enforcement.json. The advisory lock serializes writers across
// processes.
func Save(ctx context.Context, stateDir string) error {
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	lock, err := lockfile.Acquire(ctx, LockPath(stateDir), lockfile.Timeout())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	cfg := snapshot()

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := writeAtomic(filepath.Join(stateDir, ConfigFileName), data); err != nil {
		return err
	}

	mirror, err := json.MarshalIndent(cfg.Enforcement, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal enforcement mirror: %w", err)
	}
	return writeAtomic(filepath.Join(stateDir, EnforcementFileName), append(mirror, '\n'))
}

// writeAtomic writes data to path via a temp file and rename so readers
// never observe a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Reset returns every persisted key to its default value in memory.
// Follow with Save to persist.
func Reset() {
	if v == nil {
		return
	}
	for _, f := range Features {
		v.Set(f, true)
	}
	v.Set("minimal_mode", false)
	v.Set("enforcement.level", EnforcementStandard)
	v.Set("enforcement.auto_detect", true)
	v.Set("enforcement.enforced", false)
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// Set sets a configuration value in memory. Persist with Save.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
