package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NERVsystems/tripmcp/pkg/config"
	"github.com/NERVsystems/tripmcp/pkg/server"
)

// clientServerEntry is one server in an MCP client's mcpServers map.
type clientServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// generateClientConfig writes an MCP client config that launches this
// binary over stdio. With mergeOnly, other servers and top-level keys in an
// existing file are preserved.
func generateClientConfig(path string, mergeOnly bool, cfg *config.Config) error {
	if path == "" {
		return errors.New("config path cannot be empty")
	}
	if !strings.HasSuffix(path, ".json") {
		return errors.New("config file must have .json extension")
	}

	cleanPath := filepath.Clean(path)
	if err := validateSafePath(cleanPath); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := map[string]any{}
	if mergeOnly {
		data, err := os.ReadFile(cleanPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse existing config: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("failed to read existing config: %w", err)
		}
	}

	servers, _ := doc["mcpServers"].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}
	servers[server.ServerName] = clientEntry(cfg)
	doc["mcpServers"] = servers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cleanPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func clientEntry(cfg *config.Config) clientServerEntry {
	command, err := os.Executable()
	if err != nil {
		command = server.ServerName
	}

	env := map[string]string{}
	if cfg.CountriesGeoJSON != "" {
		env["COUNTRIES_GEOJSON"] = absOrSame(cfg.CountriesGeoJSON)
	}
	if cfg.TablesDir != "" {
		env["TABLES_DIR"] = absOrSame(cfg.TablesDir)
	}
	if cfg.NATSURL != "" {
		env["NATS_URL"] = cfg.NATSURL
	}
	return clientServerEntry{Command: command, Env: env}
}

func absOrSame(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// validateSafePath rejects absolute paths and paths that escape the
// working directory.
func validateSafePath(path string) error {
	if filepath.IsAbs(path) {
		return errors.New("absolute paths are not allowed")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	relPath, err := filepath.Rel(cwd, absPath)
	if err != nil {
		return fmt.Errorf("failed to determine relative path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", relPath)
	}
	return nil
}
