package sshd

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Credentials is a mutable mapping from username to password consulted
// on every client authentication attempt. While the mapping is empty
// any username/password pair is accepted; once at least one user is
// registered only exact matches are.
//
// Set may be called while client sessions are authenticating; the map
// is read under a lock, no restart is needed for changes to take
// effect.
type Credentials struct {
	mu    sync.RWMutex
	users map[string]string
}

// NewCredentials creates an empty credential store.
func NewCredentials() *Credentials {
	return &Credentials{users: make(map[string]string)}
}

// Set registers a password for a username. Repeated calls for the same
// username overwrite the previous password (last write wins).
func (c *Credentials) Set(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[username] = password
}

// Authenticate reports whether the username/password pair is accepted
// under the current store contents.
func (c *Credentials) Authenticate(username, password string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.users) == 0 {
		return true
	}
	stored, ok := c.users[username]
	return ok && stored == password
}

// PasswordCallback adapts the store to the ssh.ServerConfig password
// authentication hook.
func (c *Credentials) PasswordCallback(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	if c.Authenticate(conn.User(), string(password)) {
		return nil, nil
	}
	return nil, fmt.Errorf("password rejected for user %q", conn.User())
}
