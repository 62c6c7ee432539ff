package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/osama1998H/lume-sub000/internal/conflict"
)

// seenState is the notification record kept next to a snapshot by `conflicts --unseen`.
type seenState struct {
	Conflicts []string `yaml:"conflicts"`
}

// seenPath is where the notification record for snapshot lives unless overridden.
func seenPath(snapshot string) string {
	return snapshot + ".seen.yaml"
}

// loadSeen reads path into a cache. A missing file is an empty record.
func loadSeen(path string) (*conflict.SeenCache, error) {
	cache := conflict.NewSeenCache()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cache, nil
	}
	if err != nil {
		return nil, err
	}
	var state seenState
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("seen file %s: %w", path, err)
	}
	cache.Restore(state.Conflicts...)
	return cache, nil
}

func saveSeen(path string, cache *conflict.SeenCache) error {
	raw, err := yaml.Marshal(seenState{Conflicts: cache.Keys()})
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
