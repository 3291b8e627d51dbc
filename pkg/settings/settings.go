// Package settings manages persistent user settings for the ifconverge CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Settings holds persistent user preferences. Command-line flags override
// every field.
type Settings struct {
	// Manifest is the desired-state file used when -f is not given
	Manifest string `json:"manifest,omitempty"`

	// AuditLog is the JSON-lines audit log path
	AuditLog string `json:"audit_log,omitempty"`

	// LogFile receives a rotated copy of the log output
	LogFile string `json:"log_file,omitempty"`

	SSHUser    string `json:"ssh_user,omitempty"`
	SSHKey     string `json:"ssh_key,omitempty"`
	KnownHosts string `json:"known_hosts,omitempty"`

	// BondBracket takes an up bond down around slave and lacp_rate
	// changes. Unset means enabled.
	BondBracket *bool `json:"bond_bracket,omitempty"`

	// MetricsTextfile is written after each apply for the node-exporter
	// textfile collector
	MetricsTextfile string `json:"metrics_textfile,omitempty"`

	// RedisAddr enables publishing observed state after executed runs
	RedisAddr string `json:"redis_addr,omitempty"`
}

// DefaultAuditLog is used when AuditLog is unset.
const DefaultAuditLog = "/var/log/ifconverge/audit.log"

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ifconverge_settings.json"
	}
	return filepath.Join(home, ".ifconverge", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetAuditLog returns the audit log path (with fallback)
func (s *Settings) GetAuditLog() string {
	if s.AuditLog != "" {
		return s.AuditLog
	}
	return DefaultAuditLog
}

// GetBondBracket returns the bracketing policy (default true)
func (s *Settings) GetBondBracket() bool {
	if s.BondBracket == nil {
		return true
	}
	return *s.BondBracket
}

// Keys lists the settings names accepted by Get and Set.
func Keys() []string {
	keys := make([]string, 0, len(fields)+1)
	keys = append(keys, "bond_bracket")
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var fields = map[string]func(s *Settings) *string{
	"manifest":         func(s *Settings) *string { return &s.Manifest },
	"audit_log":        func(s *Settings) *string { return &s.AuditLog },
	"log_file":         func(s *Settings) *string { return &s.LogFile },
	"ssh_user":         func(s *Settings) *string { return &s.SSHUser },
	"ssh_key":          func(s *Settings) *string { return &s.SSHKey },
	"known_hosts":      func(s *Settings) *string { return &s.KnownHosts },
	"metrics_textfile": func(s *Settings) *string { return &s.MetricsTextfile },
	"redis_addr":       func(s *Settings) *string { return &s.RedisAddr },
}

// Get returns the value of a setting by name.
func (s *Settings) Get(key string) (string, error) {
	if key == "bond_bracket" {
		if s.BondBracket == nil {
			return "", nil
		}
		return strconv.FormatBool(*s.BondBracket), nil
	}
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	return *f(s), nil
}

// Set assigns a setting by name. An empty value unsets it.
func (s *Settings) Set(key, value string) error {
	if key == "bond_bracket" {
		if value == "" {
			s.BondBracket = nil
			return nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("bond_bracket must be true or false, got %q", value)
		}
		s.BondBracket = &b
		return nil
	}
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	*f(s) = value
	return nil
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
