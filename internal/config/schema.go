package config

import "github.com/gyaneshwarpardhi/questgraph/internal/quest"

// Config is the top-level YAML structure.
type Config struct {
	Version    string            `yaml:"version"`
	Server     ServerConf        `yaml:"server"`
	Storage    StorageConf       `yaml:"storage"`
	Graph      GraphConf         `yaml:"graph"`
	QuestTypes []quest.QuestType `yaml:"quest_types"`
	Log        LogConf           `yaml:"log"`
}

// ServerConf holds the HTTP listener settings.
type ServerConf struct {
	Addr string `yaml:"addr"`
}

// StorageConf controls where snapshots go and how often they are written.
type StorageConf struct {
	Path           string `yaml:"path"`   // sqlite database file
	Memory         bool   `yaml:"memory"` // keep everything in process memory
	SaveDebounceMs int    `yaml:"save_debounce_ms"`
	SaveTimeoutMs  int    `yaml:"save_timeout_ms"`
	QueueDepth     int    `yaml:"queue_depth"`
}

// GraphConf holds quest graph settings.
type GraphConf struct {
	IDStrategy string `yaml:"id_strategy"` // "sequential" or "uuid"
}

// LogConf sets the slog level: debug, info, warn, error.
type LogConf struct {
	Level string `yaml:"level"`
}
