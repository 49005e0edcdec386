// Package config loads, normalizes, and validates revtrack configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REVTRACK_REDIS_PASSWORD. Older YAML configuration files are translated by
// ImportLegacyYAML, which maps deprecated keys (overwrite_existing,
// stop_on_match) onto the closed collection mode enum before anything else
// sees them.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
