// Package config loads runtime configuration for the authsession CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Environment variables prefixed with AUTHSESSION_.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string     address of the identity backend (host:port for grpc, URL for rest)
//	-b string     backend: rest, grpc or memory
//	-s string     token store: sqlite, redis or memory
//	-d string     SQLite database file
//	-r string     Redis address
//	-t duration   per-request timeout, e.g. 5s
//	-l string     log level
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "5s" or integer
// nanoseconds:
//
//	{
//	  "server_endpoint_addr": "http://127.0.0.1:8080",
//	  "backend": "rest",
//	  "token_store": "sqlite",
//	  "database_dsn": "authsession.db",
//	  "request_timeout": "5s"
//	}
package config
