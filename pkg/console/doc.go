// Package console implements a restricted SSH command console server.
//
// A client connects over SSH, authenticates through pluggable password or
// public-key authenticators, opens a session channel, optionally sets
// environment variables, and sends exactly one exec request. The command
// string is handed to a CommandRunner together with an Output sink; releasing
// the Output flushes buffered output and closes the channel. There is no
// interactive shell, no PTY, and no stdin: any inbound channel data is
// rejected with a diagnostic and the channel is closed.
//
// Usage:
//  1. Build a Config with host keys (see pkg/keys) and authenticators
//  2. Create a Server with New and start it with Listen
//  3. Write command results through the Output sink and Release it
//  4. Call Stop to close the listener and all connections
package console
