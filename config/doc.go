// Package config loads the YAML configuration file and translates it into
// the per-component Config structs used across the module.
//
// Values support `${VAR}` environment expansion; referencing a variable
// that is not set is an error rather than a silent empty string. Every
// field is optional — absent values fall back to the component defaults
// documented on each Config type.
package config
