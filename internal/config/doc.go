// Package config defines the crawl configuration surface and the layers
// that populate it: built-in defaults, the optional .redditscan YAML
// file, REDDITSCAN_* environment variables, and finally command-line
// flags. Later layers override earlier ones.
package config
