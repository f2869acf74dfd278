// Package config provides the crawler's configuration: pool sizes, depth,
// transport and report settings from CLI flags, plus per-site settings
// from the .webcrawler YAML file.
package config
