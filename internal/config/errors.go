package config

import "errors"

// ErrPathPrefixRequired is returned by Load when no config source and no
// override supplies a path_prefix.
var ErrPathPrefixRequired = errors.New("config: path_prefix is required")

// ErrFileNotFound is returned when an explicitly named config file does
// not exist.
var ErrFileNotFound = errors.New("config: file not found")

// ErrRead is returned when an existing config file cannot be read.
var ErrRead = errors.New("config: read failed")

// ErrInvalid is returned when a config file's contents are not valid
// JSONC or do not match the Config shape.
var ErrInvalid = errors.New("config: invalid config file")
