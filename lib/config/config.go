// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable [Load] reads the config path
// from.
const EnvVar = "GYMNET_CONFIG"

// ScenarioFile must exist inside every scenario directory.
const ScenarioFile = "omnetpp.ini"

// Config is the master configuration for a gymnet environment.
type Config struct {
	// ScenarioDir is the directory holding omnetpp.ini. The simulator
	// runs with it as its working directory.
	ScenarioDir string `yaml:"scenario_dir" validate:"required"`

	// Executable is the simulator binary. When it does not name an
	// existing file it is looked up as <dirname(scenario_dir)>/src/<executable>.
	Executable string `yaml:"executable" validate:"required"`

	ConfigName    string `yaml:"config_name" validate:"required"`
	SimTimeLimit  string `yaml:"sim_time_limit" validate:"required"`
	UserInterface string `yaml:"user_interface" validate:"oneof=Cmdenv Qtenv"`

	// RunSimulator launches the simulator on every reset. Disable it
	// to attach a simulator started by hand to a fixed port.
	RunSimulator bool `yaml:"run_simulator"`
	PrintStdout  bool `yaml:"print_stdout"`

	// Port is the engine's listening port. Zero picks an ephemeral one.
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	GracePeriod time.Duration `yaml:"grace_period" validate:"gt=0"`
	ExitTimeout time.Duration `yaml:"exit_timeout" validate:"gt=0"`

	// ExtraArgs are appended to the simulator command line as
	// key=value, sorted by key.
	ExtraArgs map[string]string `yaml:"extra_args"`

	// OmnetppDir is the OMNeT++ installation. On Windows it supplies
	// the default EnvPath.
	OmnetppDir string `yaml:"omnetpp_dir"`

	// EnvPath is prepended to the simulator's PATH.
	EnvPath string `yaml:"env_path"`

	// EnvFile is a dotenv file whose variables are added to the
	// simulator's environment.
	EnvFile string `yaml:"env_file"`

	WireFormat    string `yaml:"wire_format" validate:"oneof=protobuf cbor"`
	ActionEncoder string `yaml:"action_encoder" validate:"oneof=dict-box discrete value"`
	LogLevel      string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns a Config with every optional field set. ScenarioDir
// is left empty and must be supplied.
func Default() *Config {
	return &Config{
		Executable:    "run",
		ConfigName:    "General",
		SimTimeLimit:  "1s",
		UserInterface: "Cmdenv",
		RunSimulator:  true,
		Timeout:       3 * time.Second,
		GracePeriod:   time.Second,
		ExitTimeout:   5 * time.Second,
		WireFormat:    "protobuf",
		ActionEncoder: "dict-box",
		LogLevel:      "info",
	}
}

// Load loads configuration from the file named by GYMNET_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your gymnet.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path on top of [Default]. Files
// ending in .json or .jsonc may contain comments and trailing commas.
// Relative scenario_dir, executable, and env_file values are taken
// relative to the config file's directory.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	cfg.anchor(filepath.Dir(path))
	cfg.applyPlatformDefaults(runtime.GOOS)
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.ScenarioDir = expandVars(c.ScenarioDir, vars)
	vars["SCENARIO_DIR"] = c.ScenarioDir

	c.Executable = expandVars(c.Executable, vars)
	c.OmnetppDir = expandVars(c.OmnetppDir, vars)
	c.EnvPath = expandVars(c.EnvPath, vars)
	c.EnvFile = expandVars(c.EnvFile, vars)
	for key, value := range c.ExtraArgs {
		c.ExtraArgs[key] = expandVars(value, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// anchor resolves relative file paths against base.
func (c *Config) anchor(base string) {
	if c.ScenarioDir != "" && !filepath.IsAbs(c.ScenarioDir) {
		c.ScenarioDir = filepath.Join(base, c.ScenarioDir)
	}
	if c.EnvFile != "" && !filepath.IsAbs(c.EnvFile) {
		c.EnvFile = filepath.Join(base, c.EnvFile)
	}
	if strings.ContainsRune(c.Executable, filepath.Separator) && !filepath.IsAbs(c.Executable) {
		c.Executable = filepath.Join(base, c.Executable)
	}
}

// applyPlatformDefaults fills EnvPath with the OMNeT++ MinGW toolchain
// directories on Windows, where the simulator cannot find its DLLs
// otherwise.
func (c *Config) applyPlatformDefaults(goos string) {
	if goos != "windows" || c.EnvPath != "" || c.OmnetppDir == "" {
		return
	}
	var builder strings.Builder
	for _, directory := range []string{
		`tools\win32.x86_64\opt\mingw64\bin`,
		`tools\win32.x86_64\mingw64\bin`,
		`bin`,
	} {
		builder.WriteString(c.OmnetppDir + `\` + directory + ";")
	}
	c.EnvPath = builder.String()
}

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field and the scenario directory on disk,
// returning all problems joined. Each is a *ValidationError.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return err
		}
		for _, fieldError := range fieldErrors {
			errs = append(errs, &ValidationError{
				Field:  fieldError.Field(),
				Reason: describeTag(fieldError),
			})
		}
	}

	if c.ScenarioDir != "" {
		if err := ValidateScenarioDir(c.ScenarioDir); err != nil {
			errs = append(errs, err)
		}
	}

	if c.EnvFile != "" {
		if _, err := os.Stat(c.EnvFile); err != nil {
			errs = append(errs, &ValidationError{Field: "env_file", Reason: err.Error()})
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func describeTag(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fieldError.Param()
	case "gt":
		return "must be greater than " + fieldError.Param()
	case "gte", "lte":
		return "must be between 0 and 65535"
	}
	return fmt.Sprintf("failed %q check", fieldError.Tag())
}

// ValidateScenarioDir checks that directory exists and contains
// omnetpp.ini.
func ValidateScenarioDir(directory string) error {
	info, err := os.Stat(directory)
	if err != nil || !info.IsDir() {
		return &ValidationError{
			Field:  "scenario_dir",
			Reason: fmt.Sprintf("%s does not point to a directory", directory),
		}
	}
	if _, err := os.Stat(filepath.Join(directory, ScenarioFile)); err != nil {
		return &ValidationError{
			Field:  "scenario_dir",
			Reason: fmt.Sprintf("%s needs to contain an %s file", directory, ScenarioFile),
		}
	}
	return nil
}

// ResolveExecutable returns the simulator binary path. An Executable
// naming an existing file is returned as an absolute path. Otherwise
// it becomes <dirname(scenario_dir)>/src/<executable>, the layout of an
// OMNeT++ project where simulations/ and src/ are siblings, again made
// absolute. A bare name with no such file under src/ is returned
// unchanged so the launcher can search PATH, env_path included.
func (c *Config) ResolveExecutable() string {
	if info, err := os.Stat(c.Executable); err == nil && !info.IsDir() {
		return absolute(c.Executable)
	}
	project := filepath.Join(filepath.Dir(filepath.Clean(c.ScenarioDir)), "src", c.Executable)
	if _, err := os.Stat(project); err != nil && !strings.ContainsRune(c.Executable, filepath.Separator) {
		return c.Executable
	}
	return absolute(project)
}

// absolute anchors path at the working directory. The simulator runs
// in scenario_dir, so a path relative to the engine's directory would
// resolve elsewhere in the child.
func absolute(path string) string {
	if resolved, err := filepath.Abs(path); err == nil {
		return resolved
	}
	return path
}

// SimulatorEnv reads EnvFile and returns its variables as KEY=VALUE
// pairs sorted by key. It returns nil when no EnvFile is configured.
func (c *Config) SimulatorEnv() ([]string, error) {
	if c.EnvFile == "" {
		return nil, nil
	}
	file, err := os.Open(c.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("opening env file: %w", err)
	}
	defer file.Close()

	values, err := godotenv.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing env file %s: %w", c.EnvFile, err)
	}
	env := make([]string, 0, len(values))
	for key, value := range values {
		env = append(env, key+"="+value)
	}
	slices.Sort(env)
	return env, nil
}
