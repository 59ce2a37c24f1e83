// Package settings provides server-side settings management.
package settings

import (
	"errors"
	"fmt"
	"time"
)

// UserConfig is one login account as declared by the operator.
type UserConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Settings is the server configuration stored in settings.json. Durations
// are stored as milliseconds so the file stays plain JSON.
type Settings struct {
	ServerName       string       `json:"server_name"`
	MaxMessageLength int          `json:"max_message_length"`
	SweepIntervalMS  int          `json:"sweep_interval_ms"`
	SettleDelayMS    int          `json:"settle_delay_ms"`
	Users            []UserConfig `json:"users"`
}

func Default() Settings {
	return Settings{
		ServerName:       "parley",
		MaxMessageLength: 4096,
		SweepIntervalMS:  2000,
		SettleDelayMS:    1000,
	}
}

// SweepInterval returns how often the activation sweeper scans sessions.
func (s Settings) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMS) * time.Millisecond
}

// SettleDelay returns how long a fully joined session must sit untouched
// before the sweeper activates it.
func (s Settings) SettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMS) * time.Millisecond
}

// Validate checks invariants that would break the server at runtime.
func (s Settings) Validate() error {
	if s.ServerName == "" {
		return errors.New("server_name is required")
	}
	if s.MaxMessageLength <= 0 {
		return fmt.Errorf("max_message_length must be positive, got %d", s.MaxMessageLength)
	}
	if s.SweepIntervalMS <= 0 {
		return fmt.Errorf("sweep_interval_ms must be positive, got %d", s.SweepIntervalMS)
	}
	if s.SettleDelayMS < 0 {
		return fmt.Errorf("settle_delay_ms must not be negative, got %d", s.SettleDelayMS)
	}

	seen := make(map[string]bool, len(s.Users))
	for _, u := range s.Users {
		if u.Username == "" {
			return errors.New("user username is required")
		}
		if u.Password == "" {
			return fmt.Errorf("user %q has no password", u.Username)
		}
		if seen[u.Username] {
			return fmt.Errorf("duplicate user %q", u.Username)
		}
		seen[u.Username] = true
	}
	return nil
}

func (s Settings) clone() Settings {
	out := s
	out.Users = make([]UserConfig, len(s.Users))
	copy(out.Users, s.Users)
	return out
}

func equal(a, b Settings) bool {
	if a.ServerName != b.ServerName ||
		a.MaxMessageLength != b.MaxMessageLength ||
		a.SweepIntervalMS != b.SweepIntervalMS ||
		a.SettleDelayMS != b.SettleDelayMS ||
		len(a.Users) != len(b.Users) {
		return false
	}
	for i := range a.Users {
		if a.Users[i] != b.Users[i] {
			return false
		}
	}
	return true
}
