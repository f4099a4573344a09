// Package config loads the YAML file that wires an entitycache deployment:
// which store driver to use, the refresh policy, the remote source and the logger.
//
// Secrets are never stored in the file. Fields ending in _env name the
// environment variable that holds the value.
package config
