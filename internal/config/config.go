/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Output modes for transformed pages.
const (
	OutputDatabase = "database"
	OutputConsole  = "console"
)

type IssueType struct {
	Name   string   `mapstructure:"name"`
	Fields []string `mapstructure:"fields"`
}

type Scope struct {
	Project    string      `mapstructure:"project"`
	JQLBase    string      `mapstructure:"jql_base"`
	IssueTypes []IssueType `mapstructure:"issue_types"`
}

// Windows controls the initial backfill window and the incremental
// safety skew.
type Windows struct {
	InitialDays int `mapstructure:"initial_days"`
	SafetySkewS int `mapstructure:"safety_skew_s"`
}

func (w Windows) SafetySkew() time.Duration { return time.Duration(w.SafetySkewS) * time.Second }

type Jira struct {
	BaseURL       string `mapstructure:"base_url"`
	PATEnv        string `mapstructure:"pat_env"`
	CABundle      string `mapstructure:"ca_bundle"`
	PageSize      int    `mapstructure:"page_size"`
	Parallelism   int    `mapstructure:"parallelism"` // reserved; extraction is sequential
	ValidateQuery bool   `mapstructure:"validate_query"`
	TimeoutS      int    `mapstructure:"timeout_s"`
}

func (j Jira) Timeout() time.Duration {
	if j.TimeoutS <= 0 { return 30 * time.Second }
	return time.Duration(j.TimeoutS) * time.Second
}

// PAT resolves the personal access token from the configured env var.
func (j Jira) PAT() (string, error) {
	token := strings.TrimSpace(os.Getenv(j.PATEnv))
	if token == "" { return "", fmt.Errorf("config: environment variable %s is not set", j.PATEnv) }
	return token, nil
}

type Database struct {
	DSNEnv string `mapstructure:"dsn_env"`
}

func (d Database) DSN() (string, error) {
	dsn := strings.TrimSpace(os.Getenv(d.DSNEnv))
	if dsn == "" { return "", fmt.Errorf("config: environment variable %s is not set", d.DSNEnv) }
	return dsn, nil
}

type Output struct {
	Mode string `mapstructure:"mode"`
}

func (o Output) PrintOnly() bool { return strings.EqualFold(o.Mode, OutputConsole) }

// Daemon holds settings for the long-running sync mode.
type Daemon struct {
	Cron     string `mapstructure:"cron"`
	HTTPAddr string `mapstructure:"http_addr"`
	TZ       string `mapstructure:"tz"`
}

type Config struct {
	AppEnv   string    `mapstructure:"app_env"`
	Jira     Jira      `mapstructure:"jira"`
	Scopes   []Scope   `mapstructure:"scopes"`
	Windows  Windows   `mapstructure:"windows"`
	Database *Database `mapstructure:"database"`
	Output   Output    `mapstructure:"output"`
	Daemon   Daemon    `mapstructure:"daemon"`
}

// Load reads the YAML configuration file and validates the parts every
// command depends on. Secrets stay in the environment; the file only
// names the variables that hold them.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("app_env", "dev")
	v.SetDefault("jira.pat_env", "JIRA_PAT")
	v.SetDefault("jira.page_size", 100)
	v.SetDefault("jira.parallelism", 2)
	v.SetDefault("jira.validate_query", true)
	v.SetDefault("windows.initial_days", 90)
	v.SetDefault("windows.safety_skew_s", 60)
	v.SetDefault("output.mode", OutputDatabase)
	v.SetDefault("daemon.cron", "*/30 * * * *")
	v.SetDefault("daemon.http_addr", ":8080")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil { return Config{}, err }
	return cfg, nil
}

func (c Config) validate() error {
	if c.Jira.BaseURL == "" { return fmt.Errorf("config: jira.base_url is required") }
	if c.Jira.PATEnv == "" { return fmt.Errorf("config: jira.pat_env is required") }
	if c.Jira.PageSize <= 0 { return fmt.Errorf("config: jira.page_size must be positive") }
	if c.Jira.Parallelism <= 0 { return fmt.Errorf("config: jira.parallelism must be at least one") }
	if len(c.Scopes) == 0 { return fmt.Errorf("config: at least one scope is required") }
	for _, s := range c.Scopes {
		if s.Project == "" { return fmt.Errorf("config: scope requires a project key") }
		if len(s.IssueTypes) == 0 { return fmt.Errorf("config: scope %s requires at least one issue type", s.Project) }
		for _, it := range s.IssueTypes {
			if it.Name == "" { return fmt.Errorf("config: scope %s has an issue type without a name", s.Project) }
		}
	}
	if c.Windows.InitialDays <= 0 { return fmt.Errorf("config: windows.initial_days must be positive") }
	if c.Windows.SafetySkewS < 0 { return fmt.Errorf("config: windows.safety_skew_s must be non-negative") }
	switch strings.ToLower(c.Output.Mode) {
	case OutputDatabase, OutputConsole:
	default:
		return fmt.Errorf("config: unknown output.mode %q", c.Output.Mode)
	}
	return nil
}

type ScopePair struct {
	Scope     Scope
	IssueType IssueType
}

// IssueTypeScopes flattens every (scope, issue type) combination in
// configuration order.
func (c Config) IssueTypeScopes() []ScopePair {
	var out []ScopePair
	for _, s := range c.Scopes {
		for _, it := range s.IssueTypes {
			out = append(out, ScopePair{Scope: s, IssueType: it})
		}
	}
	return out
}

// ScopeName returns the canonical "<project>:<type>" key used by the
// cursor store.
func ScopeName(project, issueType string) string { return project + ":" + issueType }
