// Package main is the entry point for the sshconsole application.
//
// This package provides the command-line interface (CLI) for running the
// example echo console server and managing the accounts it authenticates
// against. The server core itself (pkg/console) has no CLI surface; this
// binary is the embedding application.
//
// Usage:
//
//	sshconsole                  # Start the echo console server
//	sshconsole add-user ...     # Add a user
//	sshconsole remove-user ...  # Remove a user
//	sshconsole gen-hostkey      # Print a fresh host key line
//	sshconsole help             # Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"sshconsole/internal/config"
	"sshconsole/internal/userdb"
	"sshconsole/pkg/console"
	"sshconsole/pkg/keys"
	"sshconsole/pkg/pamauth"
)

// main parses command-line arguments to determine whether to start the
// console server or invoke user management commands. With no arguments it
// starts the server.
func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "add-user":
			if len(os.Args) != 4 {
				fmt.Println("Usage: sshconsole add-user <username> <password>")
				os.Exit(1)
			}
			db := openUserDB()
			if err := db.AddUser(os.Args[2], os.Args[3]); err != nil {
				fmt.Printf("Error adding user: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("User '%s' added successfully!\n", os.Args[2])
			return

		case "remove-user":
			if len(os.Args) != 3 {
				fmt.Println("Usage: sshconsole remove-user <username>")
				os.Exit(1)
			}
			db := openUserDB()
			if err := db.RemoveUser(os.Args[2]); err != nil {
				fmt.Printf("Error removing user: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("User '%s' removed successfully!\n", os.Args[2])
			return

		case "list-users":
			db := openUserDB()
			for _, user := range db.ListUsers() {
				state := "enabled"
				if !user.Enabled {
					state = "disabled"
				}
				fmt.Printf("%s (%s)\n", user.Username, state)
			}
			return

		case "enable-user", "disable-user":
			if len(os.Args) != 3 {
				fmt.Printf("Usage: sshconsole %s <username>\n", os.Args[1])
				os.Exit(1)
			}
			db := openUserDB()
			enabled := os.Args[1] == "enable-user"
			if err := db.SetEnabled(os.Args[2], enabled); err != nil {
				fmt.Printf("Error updating user: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("User '%s' updated successfully!\n", os.Args[2])
			return

		case "gen-hostkey":
			key, err := keys.GenerateHostKey()
			if err != nil {
				fmt.Printf("Error generating host key: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(key.String())
			return

		case "help", "-h", "--help":
			printUsage()
			return

		default:
			fmt.Printf("Unknown command: %s\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}

	runServer()
}

// runServer starts the echo console server and blocks until a shutdown
// signal arrives.
func runServer() {
	hostKey, err := loadOrCreateHostKey()
	if err != nil {
		fmt.Printf("Error preparing host key: %v\n", err)
		os.Exit(1)
	}

	cfg := console.Config{
		Host:     envOr("SSHCONSOLE_HOST", "0.0.0.0"),
		Port:     envPort("SSHCONSOLE_PORT", 2022),
		HostKeys: []keys.HostKey{hostKey},
	}

	// Password attempts go to PAM when a service is configured, otherwise to
	// the local user database.
	if service := os.Getenv("SSHCONSOLE_PAM_SERVICE"); service != "" {
		cfg.PasswordAuth = pamauth.Authenticator(service)
	} else {
		cfg.PasswordAuth = openUserDB().Authenticator()
	}

	// Public-key attempts consult the authorized_keys file when present.
	if path, err := config.GetAuthorizedKeysPath(); err == nil {
		if _, err := os.Stat(path); err == nil {
			cfg.PublicKeyAuth = authorizedKeysFile(path)
		}
	}

	server := console.New(cfg)
	if err := server.Listen(echoRunner); err != nil {
		fmt.Printf("Error starting server: %v\n", err)
		os.Exit(1)
	}

	// Block until a shutdown signal is received (e.g. Ctrl+C or SIGTERM).
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	if err := server.Stop(); err != nil {
		fmt.Printf("Error stopping server: %v\n", err)
		os.Exit(1)
	}
}

// echoRunner is the example command handler: it echoes the command string
// back to the client and releases the output.
func echoRunner(command string, out *console.Output, username string, env map[string]string) {
	defer out.Release()
	_ = out.Write(command + "\r\n")
}

// authorizedKeysFile returns a public-key authenticator that re-reads the
// authorized_keys file on every attempt, so new keys take effect without a
// restart. File I/O is fine here: authenticators run off the transport
// goroutine.
func authorizedKeysFile(path string) console.PublicKeyAuthenticator {
	return func(username string, credential keys.Credential, complete console.CompletionFunc) {
		data, err := os.ReadFile(path)
		if err != nil {
			complete(false)
			return
		}
		complete(credential.IsAuthorized(string(data)))
	}
}

// loadOrCreateHostKey reads the host key from the config directory,
// generating and saving a new one on first start.
func loadOrCreateHostKey() (keys.HostKey, error) {
	path, err := config.GetHostKeyPath()
	if err != nil {
		return keys.HostKey{}, err
	}
	if data, err := os.ReadFile(path); err == nil {
		return keys.ParseHostKey(string(data))
	}
	key, err := keys.GenerateHostKey()
	if err != nil {
		return keys.HostKey{}, err
	}
	if err := os.WriteFile(path, []byte(key.String()+"\n"), 0600); err != nil {
		return keys.HostKey{}, fmt.Errorf("failed to save generated host key: %v", err)
	}
	return key, nil
}

func openUserDB() *userdb.DB {
	path, err := config.GetUserDBPath()
	if err != nil {
		path = ""
	}
	return userdb.Open(path)
}

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envPort(name string, fallback int) int {
	if value := os.Getenv(name); value != "" {
		if port, err := strconv.Atoi(value); err == nil {
			return port
		}
	}
	return fallback
}

// printUsage prints usage information for the sshconsole CLI.
func printUsage() {
	fmt.Println("sshconsole - SSH Command Console Server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sshconsole                          - Start the echo console server")
	fmt.Println("  sshconsole add-user <user> <pass>   - Add a user")
	fmt.Println("  sshconsole remove-user <user>       - Remove a user")
	fmt.Println("  sshconsole list-users               - List all users")
	fmt.Println("  sshconsole enable-user <user>       - Enable a user")
	fmt.Println("  sshconsole disable-user <user>      - Disable a user")
	fmt.Println("  sshconsole gen-hostkey              - Print a fresh host key line")
	fmt.Println("  sshconsole help                     - Show this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  SSHCONSOLE_HOST         - Bind address (default 0.0.0.0)")
	fmt.Println("  SSHCONSOLE_PORT         - Listen port (default 2022)")
	fmt.Println("  SSHCONSOLE_PAM_SERVICE  - Authenticate passwords via this PAM service")
}
