package config

import (
	"fmt"
	"regexp"
	"strings"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks the config for:
//   - Required fields and sane timings
//   - A known id strategy and log level
//   - Quest types with unique labels and colors, each a hex color
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if !cfg.Storage.Memory && cfg.Storage.Path == "" {
		errs = append(errs, "storage.path is required unless storage.memory is set")
	}
	if cfg.Storage.SaveDebounceMs < 0 {
		errs = append(errs, fmt.Sprintf("storage.save_debounce_ms must not be negative, got %d", cfg.Storage.SaveDebounceMs))
	}
	if cfg.Storage.SaveTimeoutMs <= 0 {
		errs = append(errs, fmt.Sprintf("storage.save_timeout_ms must be positive, got %d", cfg.Storage.SaveTimeoutMs))
	}
	if cfg.Storage.QueueDepth <= 0 {
		errs = append(errs, fmt.Sprintf("storage.queue_depth must be positive, got %d", cfg.Storage.QueueDepth))
	}

	switch cfg.Graph.IDStrategy {
	case "sequential", "uuid":
	default:
		errs = append(errs, fmt.Sprintf("graph.id_strategy must be sequential or uuid, got %q", cfg.Graph.IDStrategy))
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level))
	}

	labels := make(map[string]int)
	colors := make(map[string]int)
	for i, qt := range cfg.QuestTypes {
		loc := fmt.Sprintf("quest_types[%d]", i)
		if strings.TrimSpace(qt.Label) == "" {
			errs = append(errs, loc+": label is required")
		} else {
			key := strings.ToLower(qt.Label)
			if prev, ok := labels[key]; ok {
				errs = append(errs, fmt.Sprintf("duplicate quest type label %q (quest_types[%d] and %s)", qt.Label, prev, loc))
			} else {
				labels[key] = i
			}
		}
		if !hexColor.MatchString(qt.Color) {
			errs = append(errs, fmt.Sprintf("%s: color %q is not a hex color", loc, qt.Color))
			continue
		}
		key := strings.ToLower(qt.Color)
		if prev, ok := colors[key]; ok {
			errs = append(errs, fmt.Sprintf("duplicate quest type color %q (quest_types[%d] and %s)", qt.Color, prev, loc))
		} else {
			colors[key] = i
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
