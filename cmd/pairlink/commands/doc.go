// Package commands defines the pairlink CLI and wires dependencies for subcommands.
//
// Commands
//
//   - create      Create a pairing, print its URI and wait for approval
//   - activate    Join a pairing from a URI
//   - pairings    List known pairings
//   - delete      Delete a pairing and notify the peer
//   - ping        Ping the peer of a pairing
//   - propose     Propose a session on a pairing and wait for settlement
//   - listen      Act as responder: approve proposals and answer requests
//   - sessions    List settled sessions
//   - disconnect  End a session and notify the peer
//
// # Implementation
//
// The root command loads the viper configuration (defaults, PAIRLINK_*
// environment, optional --config file) and applies flag overrides before any
// subcommand runs. Subcommands that talk to peers build an app.App for the
// role they need and close it on return; listing commands read the stores
// directly.
package commands
