// ABOUTME: Application settings (update cadence, page size, refresh rules) read from a YAML file.
// ABOUTME: Missing files and omitted keys fall back to built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// RefreshRule refreshes statuses younger than MaxAge whose last refresh is
// older than Frequency.
type RefreshRule struct {
	MaxAge    Duration `yaml:"max-age"`
	Frequency Duration `yaml:"frequency"`
}

// Settings controls the background workers and the timeline views.
type Settings struct {
	TimelineUpdateFrequency Duration      `yaml:"timeline-update-frequency"`
	TimelineStatusesCount   int           `yaml:"timeline-statuses-count"`
	PopularWindow           Duration      `yaml:"popular-window"`
	StatusRefresh           []RefreshRule `yaml:"status-refresh"`
}

// DefaultSettings returns the settings used when no file is configured.
func DefaultSettings() Settings {
	return Settings{
		TimelineUpdateFrequency: Duration(5 * time.Minute),
		TimelineStatusesCount:   40,
		PopularWindow:           Duration(7 * 24 * time.Hour),
		StatusRefresh: []RefreshRule{
			{MaxAge: Duration(24 * time.Hour), Frequency: Duration(time.Hour)},
			{MaxAge: Duration(7 * 24 * time.Hour), Frequency: Duration(24 * time.Hour)},
		},
	}
}

// LoadSettings reads path over the defaults. An empty path or a missing file
// yields the defaults unchanged.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate rejects values the workers cannot run with.
func (s Settings) Validate() error {
	if s.TimelineUpdateFrequency <= 0 {
		return errors.New("timeline-update-frequency must be positive")
	}
	if s.TimelineStatusesCount <= 0 {
		return errors.New("timeline-statuses-count must be positive")
	}
	for i, r := range s.StatusRefresh {
		if r.Frequency <= 0 {
			return fmt.Errorf("status-refresh[%d]: frequency must be positive", i)
		}
	}
	return nil
}

// SortedRefreshRules returns the refresh rules ordered by MaxAge ascending.
func (s Settings) SortedRefreshRules() []RefreshRule {
	rules := append([]RefreshRule(nil), s.StatusRefresh...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].MaxAge < rules[j].MaxAge })
	return rules
}
