// Package app wires application dependencies for the CLI.
//
// Config is loaded with viper from defaults, PAIRLINK_* environment variables
// and an optional YAML file. NewWire builds the concrete stores, keychain and
// relay from it, and New assembles and initializes the pairing engine plus
// the session engine for the requested role.
package app
