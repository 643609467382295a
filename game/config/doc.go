// Package config holds the Cheese Pants server configuration.
//
// Settings are layered: Default values, then an optional YAML file read
// with LoadFile, then environment variables and command-line flags applied
// by the CLI. Validate reports every problem at once, each wrapping
// ErrInvalidConfig.
//
// Example file:
//
//	server:
//	  port: 8080
//	storage:
//	  driver: sqlite
//	  dsn: cheesepants.db
//	rooms:
//	  idle_timeout: 30m
//	websocket:
//	  rate_limit: 5
//	  burst: 10
//	log:
//	  level: debug
//	  pretty: true
package config
