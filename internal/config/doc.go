// Package config loads, normalizes, and validates dualsub configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as PLEX_TOKEN and DUALSUB_MAX_CONCURRENT_JOBS.
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
