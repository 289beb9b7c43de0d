package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func initForTest(t *testing.T) {
	t.Helper()
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}

func TestResolveAgentChain(t *testing.T) {
	t.Chdir(t.TempDir())
	initForTest(t)

	if got := ResolveAgent(""); got != "default" {
		t.Fatalf("expected fallback identity default, got %q", got)
	}

	t.Setenv("TM_AGENT_ID", "env-agent")
	if got := ResolveAgent(""); got != "env-agent" {
		t.Fatalf("expected TM_AGENT_ID to win, got %q", got)
	}
	if got := ResolveAgent("cli-agent"); got != "cli-agent" {
		t.Fatalf("expected flag to win over env, got %q", got)
	}
}

func TestMinimalModeForcesTogglesOff(t *testing.T) {
	t.Chdir(t.TempDir())
	initForTest(t)

	for _, f := range Features {
		if !FeatureEnabled(f) {
			t.Fatalf("feature %s should default to enabled", f)
		}
	}

	Set("minimal_mode", true)
	for _, f := range Features {
		if FeatureEnabled(f) {
			t.Fatalf("feature %s should be off in minimal mode", f)
		}
	}

	Set("minimal_mode", false)
	Set(FeatureTelemetry, false)
	if FeatureEnabled(FeatureTelemetry) {
		t.Fatal("individually disabled toggle should stay off")
	}
	if !FeatureEnabled(FeatureFeedback) {
		t.Fatal("other toggles should be unaffected")
	}
}

func TestFindStateDirWalksUp(t *testing.T) {
	root := t.TempDir()
	stateDir := filepath.Join(root, StateDirName)
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "src", "pkg")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	dir, found := FindStateDir()
	if !found {
		t.Fatal("expected state dir to be found from nested cwd")
	}
	want, _ := filepath.EvalSymlinks(stateDir)
	got, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Fatalf("found %s, want %s", got, want)
	}
}

func TestFindStateDirAbsent(t *testing.T) {
	t.Chdir(t.TempDir())

	got, found := FindStateDir()
	if found {
		t.Fatal("no state dir should be found in a fresh temp dir")
	}
	if filepath.Base(got) != StateDirName {
		t.Fatalf("fallback location should be under cwd, got %s", got)
	}
}

func TestDBPathPrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	initForTest(t)

	if got := DBPath(filepath.Join("custom", "tasks.db")); got != filepath.Join("custom", "tasks.db") {
		t.Fatalf("flag value should win, got %q", got)
	}

	t.Setenv("TM_DB_PATH", "/env/tasks.db")
	if got := DBPath(""); got != "/env/tasks.db" {
		t.Fatalf("TM_DB_PATH should win over discovery, got %q", got)
	}
}

func TestDBPathDefaultsUnderStateDir(t *testing.T) {
	t.Chdir(t.TempDir())
	initForTest(t)

	got := DBPath("")
	wantSuffix := filepath.Join(StateDirName, DBFileName)
	if filepath.Base(filepath.Dir(got)) != StateDirName || filepath.Base(got) != DBFileName {
		t.Fatalf("default db path should end in %s, got %s", wantSuffix, got)
	}
}

func TestSaveWritesConfigAndMirror(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	initForTest(t)

	Set(FeatureTelemetry, false)
	Set("enforcement.level", EnforcementStrict)
	Set("enforcement.enforced", true)

	stateDir := filepath.Join(dir, StateDirName)
	if err := Save(context.Background(), stateDir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(stateDir, ConfigFileName))
	if err != nil {
		t.Fatalf("read config.yaml: %v", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshal config.yaml: %v", err)
	}
	if cfg.Telemetry {
		t.Fatal("telemetry should persist as disabled")
	}
	if !cfg.SuccessCriteria || !cfg.Feedback {
		t.Fatal("untouched toggles should persist as enabled")
	}
	if cfg.Enforcement.Level != EnforcementStrict {
		t.Fatalf("enforcement level not persisted, got %q", cfg.Enforcement.Level)
	}

	raw, err := os.ReadFile(filepath.Join(stateDir, EnforcementFileName))
	if err != nil {
		t.Fatalf("read enforcement.json: %v", err)
	}
	var mirror struct {
		Level    string `json:"enforcement_level"`
		Enforced bool   `json:"enforced"`
	}
	if err := json.Unmarshal(raw, &mirror); err != nil {
		t.Fatalf("unmarshal enforcement.json: %v", err)
	}
	if mirror.Level != EnforcementStrict || !mirror.Enforced {
		t.Fatalf("mirror out of sync: %+v", mirror)
	}

	// A fresh Initialize must pick the persisted values back up.
	initForTest(t)
	if FeatureEnabled(FeatureTelemetry) {
		t.Fatal("persisted disable should survive reload")
	}
	if EnforcementLevel() != EnforcementStrict {
		t.Fatalf("persisted level should survive reload, got %q", EnforcementLevel())
	}
}

func TestEnforcementLevelFallback(t *testing.T) {
	t.Chdir(t.TempDir())
	initForTest(t)

	Set("enforcement.level", "bogus")
	if got := EnforcementLevel(); got != EnforcementStandard {
		t.Fatalf("unrecognized level should fall back to standard, got %q", got)
	}
}

func TestReset(t *testing.T) {
	t.Chdir(t.TempDir())
	initForTest(t)

	Set(FeatureDeadlines, false)
	Set("minimal_mode", true)
	Set("enforcement.level", EnforcementAdvisory)

	Reset()

	if !FeatureEnabled(FeatureDeadlines) {
		t.Fatal("Reset should re-enable toggles")
	}
	if MinimalMode() {
		t.Fatal("Reset should clear minimal mode")
	}
	if EnforcementLevel() != EnforcementStandard {
		t.Fatalf("Reset should restore standard enforcement, got %q", EnforcementLevel())
	}
}

func TestIsFeatureAndLevel(t *testing.T) {
	if !IsFeature(FeatureTimeTracking) {
		t.Fatal("time_tracking is a feature")
	}
	if IsFeature("turbo_mode") {
		t.Fatal("unknown names are not features")
	}
	if !IsEnforcementLevel(EnforcementAdvisory) {
		t.Fatal("advisory is a level")
	}
	if IsEnforcementLevel("paranoid") {
		t.Fatal("unknown names are not levels")
	}
}
