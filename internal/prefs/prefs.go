// Package prefs persists lotwatch UI preferences in ~/.config/lotwatch/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for the terminal UI.
type Prefs struct {
	Theme       string `toml:"theme"`
	PollSeconds int    `toml:"poll_seconds"`
	HideClosed  bool   `toml:"hide_closed"`
}

const (
	defaultPrefsPath   = "~/.config/lotwatch/prefs.toml"
	defaultTheme       = "Midnight"
	defaultPollSeconds = 20
	minPollSeconds     = 1
	maxPollSeconds     = 3600
)

// Defaults returns the preferences used when nothing is saved.
func Defaults() Prefs {
	return Prefs{Theme: defaultTheme, PollSeconds: defaultPollSeconds}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// PollInterval returns the table's requested refresh interval.
func (p Prefs) PollInterval() time.Duration {
	return time.Duration(p.PollSeconds) * time.Second
}

// Load reads preferences from path. A missing, unreadable or invalid file
// yields defaults; individual bad values are replaced by their defaults.
func Load(path string) (Prefs, error) {
	prefs := Defaults()
	resolved, err := resolvePath(path)
	if err != nil {
		return prefs, nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, nil // Graceful degradation
	}

	if err := toml.Unmarshal(data, &prefs); err != nil {
		return Defaults(), nil // Graceful degradation
	}
	return prefs.normalized(), nil
}

// Save writes preferences to path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p.normalized())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func (p Prefs) normalized() Prefs {
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	if p.PollSeconds < minPollSeconds || p.PollSeconds > maxPollSeconds {
		p.PollSeconds = defaultPollSeconds
	}
	return p
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
