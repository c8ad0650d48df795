// Package userdb provides a file-backed user database for console password
// authentication.
//
// Features:
//   - Thread-safe user store with persistent storage (JSON file)
//   - Secure password hashing (bcrypt) and credential verification
//   - User account operations: add, remove, enable, disable
//   - An Authenticator adapter for the console server
package userdb

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sshconsole/pkg/console"
)

// User represents a user account in the database.
type User struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	Enabled      bool       `json:"enabled"`
}

// DB manages user accounts with thread-safe operations.
type DB struct {
	users    map[string]*User
	filePath string
	mutex    sync.RWMutex
}

// Open creates a user database instance backed by the given file, loading
// any existing accounts. If filePath is empty, "users.json" in the current
// directory is used.
func Open(filePath string) *DB {
	if filePath == "" {
		filePath = "users.json"
	}
	db := &DB{
		users:    make(map[string]*User),
		filePath: filePath,
	}
	db.loadFromFile()
	return db
}

// AddUser creates a new enabled user account.
func (db *DB) AddUser(username, password string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, exists := db.users[username]; exists {
		return fmt.Errorf("user '%s' already exists", username)
	}
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(password) < 4 {
		return fmt.Errorf("password must be at least 4 characters long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %v", err)
	}

	db.users[username] = &User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		Enabled:      true,
	}

	if err := db.saveToFile(); err != nil {
		// Rollback
		delete(db.users, username)
		return fmt.Errorf("failed to save user database: %v", err)
	}
	return nil
}

// RemoveUser deletes a user account.
func (db *DB) RemoveUser(username string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, exists := db.users[username]; !exists {
		return fmt.Errorf("user '%s' does not exist", username)
	}
	delete(db.users, username)

	if err := db.saveToFile(); err != nil {
		return fmt.Errorf("failed to save user database: %v", err)
	}
	return nil
}

// SetEnabled enables or disables a user account.
func (db *DB) SetEnabled(username string, enabled bool) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	user, exists := db.users[username]
	if !exists {
		return fmt.Errorf("user '%s' does not exist", username)
	}
	user.Enabled = enabled

	if err := db.saveToFile(); err != nil {
		return fmt.Errorf("failed to save user database: %v", err)
	}
	return nil
}

// ListUsers returns all accounts sorted by username.
func (db *DB) ListUsers() []User {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	users := make([]User, 0, len(db.users))
	for _, user := range db.users {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users
}

// Authenticate verifies the credentials of an enabled user and records the
// login time on success.
func (db *DB) Authenticate(username, password string) bool {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	user, exists := db.users[username]
	if !exists || !user.Enabled {
		return false
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return false
	}

	now := time.Now()
	user.LastLogin = &now
	// Login bookkeeping is best effort; authentication already succeeded.
	_ = db.saveToFile()
	return true
}

// Authenticator adapts the database to the console's password delegate
// contract.
func (db *DB) Authenticator() console.PasswordAuthenticator {
	return func(username, password string, complete console.CompletionFunc) {
		complete(db.Authenticate(username, password))
	}
}

// loadFromFile reads the user database from disk. A missing file simply
// means an empty database.
func (db *DB) loadFromFile() {
	data, err := os.ReadFile(db.filePath)
	if err != nil {
		return
	}
	var users map[string]*User
	if err := json.Unmarshal(data, &users); err != nil {
		return
	}
	db.users = users
}

// saveToFile writes the user database to disk. Callers must hold the write
// lock.
func (db *DB) saveToFile() error {
	data, err := json.MarshalIndent(db.users, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(db.filePath, data, 0600)
}
