// Package config loads, normalizes, and validates flowline's TOML
// configuration.
//
// Defaults live in defaults.go; Load layers the config file (explicit path,
// ~/.config/flowline/config.toml, or ./flowline.toml) over them, expands all
// path fields, applies environment fallbacks, and validates the result before
// any other package sees it.
package config
