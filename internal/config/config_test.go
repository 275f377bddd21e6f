package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execguard/execguard/internal/permission"
	"github.com/execguard/execguard/internal/sandbox"
)

// isolate points every config source at scratch directories so tests never
// read the developer's real configuration.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("EXECGUARD_CONFIG", "")
	t.Setenv("EXECGUARD_CONFIG_CONTENT", "")
	t.Setenv("EXECGUARD_FULL_AUTO", "")
	t.Setenv("EXECGUARD_CACHE_DIR", "")
	t.Setenv("EXECGUARD_LOG_LEVEL", "")
	t.Setenv("EXECGUARD_SANDBOX_DISABLED", "")
	t.Setenv("EXECGUARD_RULES", "")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.WorkDir)
	assert.Contains(t, cfg.CacheDir, "approvals")
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.FullAuto)
}

func TestLoadProjectConfig(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "execguard.json"), `{
		"full_auto": true,
		"log_level": "debug",
		"tools": {"webfetch": false}
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.FullAuto)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, map[string]bool{"webfetch": false}, cfg.Tools)
}

func TestLoadJSONCComments(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "execguard.jsonc"), `{
		// guard against accidental writes
		"rules": [
			{"permission": "tool:write", "pattern": "/etc/**", "action": "deny"},
		],
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, permission.ActionDeny, cfg.Rules[0].Action)
}

func TestInterpolation(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	t.Setenv("TEST_LOG_LEVEL", "warn")
	writeFile(t, filepath.Join(dir, "level.txt"), "error\n")
	writeFile(t, filepath.Join(dir, "execguard.json"), `{
		"log_level": "{env:TEST_LOG_LEVEL}",
		"cache_dir": "{file:level.txt}"
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "error", cfg.CacheDir, "file content is trimmed and inlined")
}

func TestInterpolationMissingFileKeepsPlaceholder(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "execguard.json"), `{
		"cache_dir": "{file:does-not-exist.txt}"
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "{file:does-not-exist.txt}", cfg.CacheDir)
}

func TestEnvOverridesWin(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "execguard.json"), `{"log_level": "debug"}`)
	t.Setenv("EXECGUARD_LOG_LEVEL", "error")
	t.Setenv("EXECGUARD_FULL_AUTO", "1")
	t.Setenv("EXECGUARD_SANDBOX_DISABLED", "true")
	t.Setenv("EXECGUARD_RULES", `[{"permission":"tool:bash","pattern":"*","action":"ask"}]`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.True(t, cfg.FullAuto)
	require.NotNil(t, cfg.Sandbox)
	assert.True(t, cfg.Sandbox.Disabled)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, permission.ActionAsk, cfg.Rules[0].Action)
}

func TestInlineConfigContent(t *testing.T) {
	isolate(t)
	t.Setenv("EXECGUARD_CONFIG_CONTENT", `{"full_auto": true}`)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.FullAuto)
}

func TestSandboxConfigPolicy(t *testing.T) {
	var nilConfig *SandboxConfig
	assert.Equal(t, sandbox.DefaultPolicy(), nilConfig.Policy())

	sc := &SandboxConfig{Disabled: true, Default: sandbox.KindReadOnly}
	assert.Equal(t, sandbox.Policy{Disabled: true, Default: sandbox.KindReadOnly}, sc.Policy())
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "execguard.json")

	require.NoError(t, Save(&Config{LogLevel: "debug", FullAuto: true}, path))

	cfg := &Config{}
	require.NoError(t, loadFile(path, cfg, dir))
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.FullAuto)
}

func TestLoadRuleFileBareList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, `
- permission: "tool:bash"
  pattern: "*"
  action: ask
- permission: "file:write"
  pattern: "src/**"
  action: allow
  name: allow-src
`)

	rules, err := LoadRuleFile(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, permission.ActionAsk, rules[0].Action)
	assert.Equal(t, "allow-src", rules[1].Name)
}

func TestLoadRuleFileWithRulesKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, `
rules:
  - permission: "tool:write"
    pattern: "/etc/**"
    action: deny
`)

	rules, err := LoadRuleFile(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, permission.ActionDeny, rules[0].Action)
}

func TestLoadRuleFileRejectsUnknownAction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, `
- permission: "tool:bash"
  pattern: "*"
  action: maybe
`)

	_, err := LoadRuleFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
}

func TestLoadRuleFileMissing(t *testing.T) {
	_, err := LoadRuleFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEvaluatorInlineRulesOverrideFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "rules.yaml"), `
- permission: "file:write"
  pattern: "**"
  action: deny
`)
	writeFile(t, filepath.Join(dir, "execguard.json"), `{
		"rule_files": ["rules.yaml"],
		"rules": [
			{"permission": "file:write", "pattern": "src/**", "action": "allow"}
		]
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	evaluator, err := cfg.Evaluator()
	require.NoError(t, err)

	// Inline rules come after file rules, so they win where both match.
	assert.Equal(t, permission.ActionAllow, evaluator.Evaluate("file:write", "src/main.go").Action)
	assert.Equal(t, permission.ActionDeny, evaluator.Evaluate("file:write", "README.md").Action)
}
