// Package config loads, normalizes, and validates derpisync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and honours
// environment overrides such as DERPISYNC_API_KEY. The Config type centralizes
// the index location, API pacing, and tagging tool settings so the sync
// engine and CLI see one sanitized view.
package config
