package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/execguard/execguard/internal/permission"
	"github.com/execguard/execguard/internal/sandbox"
)

// Config is the merged runtime configuration.
type Config struct {
	Schema string `json:"$schema,omitempty"`

	// WorkDir is the workspace root tools operate in. Defaults to the
	// current directory.
	WorkDir string `json:"workdir,omitempty"`

	// FullAuto suppresses interactive approval prompts.
	FullAuto bool `json:"full_auto,omitempty"`

	// CacheDir holds per-session approval cache files.
	CacheDir string `json:"cache_dir,omitempty"`

	// Sandbox is the active sandbox policy.
	Sandbox *SandboxConfig `json:"sandbox,omitempty"`

	// Rules are inline permission rules, evaluated after rules loaded
	// from RuleFiles so inline configuration overrides files.
	Rules []permission.Rule `json:"rules,omitempty"`

	// RuleFiles are YAML rule files, relative paths resolved against the
	// config file that names them.
	RuleFiles []string `json:"rule_files,omitempty"`

	// Tools enables or disables individual tools by name.
	Tools map[string]bool `json:"tools,omitempty"`

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`
}

// SandboxConfig configures sandbox selection and the launcher prefixes used
// to wrap commands per kind.
type SandboxConfig struct {
	Disabled  bool                `json:"disabled,omitempty"`
	Default   sandbox.Kind        `json:"default,omitempty"`
	Launchers map[string][]string `json:"launchers,omitempty"`
}

// Policy converts the config into a sandbox policy.
func (s *SandboxConfig) Policy() sandbox.Policy {
	if s == nil {
		return sandbox.DefaultPolicy()
	}
	return sandbox.Policy{Disabled: s.Disabled, Default: s.Default}
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/execguard/)
// 2. Project config (.execguard/ or execguard.json in the directory)
// 3. EXECGUARD_CONFIG file
// 4. EXECGUARD_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*Config, error) {
	config := &Config{}

	loaded := make(map[string]bool)

	loadOnce := func(path, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "execguard.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "execguard.jsonc"), globalPath)

	if directory != "" {
		projectDir := filepath.Join(directory, ".execguard")
		loadOnce(filepath.Join(directory, "execguard.json"), directory)
		loadOnce(filepath.Join(directory, "execguard.jsonc"), directory)
		loadOnce(filepath.Join(projectDir, "execguard.json"), projectDir)
		loadOnce(filepath.Join(projectDir, "execguard.jsonc"), projectDir)
	}

	if path := os.Getenv("EXECGUARD_CONFIG"); path != "" {
		loadOnce(path, filepath.Dir(path))
	}

	if content := os.Getenv("EXECGUARD_CONFIG_CONTENT"); content != "" {
		var inline Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(content)), &inline); err == nil {
			merge(config, &inline)
		}
	}

	applyEnvOverrides(config)
	applyDefaults(config, directory)

	return config, nil
}

// loadFile loads a single config file with interpolation support.
func loadFile(path string, config *Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // file doesn't exist, skip
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	// Relative rule files resolve against the file that names them.
	for i, rf := range fileConfig.RuleFiles {
		if !filepath.IsAbs(rf) {
			fileConfig.RuleFiles[i] = filepath.Join(baseDir, rf)
		}
	}

	merge(config, &fileConfig)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		path := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(path, "~/") {
			path = filepath.Join(os.Getenv("HOME"), path[2:])
		} else if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return match // keep placeholder if the file is missing
		}

		escaped := strings.ReplaceAll(strings.TrimSpace(string(content)), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")
		return escaped
	})

	return []byte(str)
}

// merge merges source into target. Later sources win for scalars; rule lists
// append so later sources override during reverse-order evaluation.
func merge(target, source *Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.WorkDir != "" {
		target.WorkDir = source.WorkDir
	}
	if source.FullAuto {
		target.FullAuto = true
	}
	if source.CacheDir != "" {
		target.CacheDir = source.CacheDir
	}
	if source.Sandbox != nil {
		target.Sandbox = source.Sandbox
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}

	target.Rules = append(target.Rules, source.Rules...)
	target.RuleFiles = append(target.RuleFiles, source.RuleFiles...)

	if source.Tools != nil {
		if target.Tools == nil {
			target.Tools = make(map[string]bool)
		}
		for k, v := range source.Tools {
			target.Tools[k] = v
		}
	}
}

// applyEnvOverrides applies environment variable overrides, the highest
// priority source.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("EXECGUARD_FULL_AUTO"); v == "1" || v == "true" {
		config.FullAuto = true
	}
	if dir := os.Getenv("EXECGUARD_CACHE_DIR"); dir != "" {
		config.CacheDir = dir
	}
	if level := os.Getenv("EXECGUARD_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if v := os.Getenv("EXECGUARD_SANDBOX_DISABLED"); v == "1" || v == "true" {
		if config.Sandbox == nil {
			config.Sandbox = &SandboxConfig{}
		}
		config.Sandbox.Disabled = true
	}
	if rulesJSON := os.Getenv("EXECGUARD_RULES"); rulesJSON != "" {
		var rules []permission.Rule
		if err := json.Unmarshal([]byte(rulesJSON), &rules); err == nil {
			config.Rules = append(config.Rules, rules...)
		}
	}
}

func applyDefaults(config *Config, directory string) {
	if config.WorkDir == "" {
		if directory != "" {
			config.WorkDir = directory
		} else if wd, err := os.Getwd(); err == nil {
			config.WorkDir = wd
		}
	}
	if config.CacheDir == "" {
		config.CacheDir = filepath.Join(GetPaths().State, "approvals")
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}

// Evaluator compiles the configured rules: file rules first, inline rules
// after so they win during reverse-order evaluation.
func (c *Config) Evaluator() (*permission.Evaluator, error) {
	rules, err := c.AllRules()
	if err != nil {
		return nil, err
	}
	return permission.NewEvaluator(rules...)
}

// AllRules returns file rules followed by inline rules.
func (c *Config) AllRules() ([]permission.Rule, error) {
	var rules []permission.Rule
	for _, path := range c.RuleFiles {
		fileRules, err := LoadRuleFile(path)
		if err != nil {
			return nil, err
		}
		rules = append(rules, fileRules...)
	}
	return append(rules, c.Rules...), nil
}

// Save writes the configuration to a file.
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
