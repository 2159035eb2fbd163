package main

import (
	"path/filepath"

	"labelpress/internal/config"
	"labelpress/internal/journal"
)

func buildSocketPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join("", "labelpress.sock")
	}
	return filepath.Join(cfg.Paths.LogDir, "labelpress.sock")
}

func openJournal(cfg *config.Config) (*journal.Store, error) {
	return journal.Open(cfg.Paths.LogDir)
}
