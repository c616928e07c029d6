package main

import (
	"github.com/google/uuid"

	"goa.design/swarmassistant/config"
)

// loadConfig returns config.Default() when path is empty, otherwise the
// loaded and validated file.
func loadConfig(path string) (config.RuntimeConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newTaskID() string {
	return uuid.NewString()
}
