// Package config defines the service configuration, loaded from YAML.
//
// Files may reference environment variables as ${VAR}; the loader expands
// them before parsing.
// Defaults cover every optional field, so a minimal file (or none, via
// Default) yields a runnable single-node configuration.
package config
