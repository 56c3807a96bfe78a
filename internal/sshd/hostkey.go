package sshd

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// generateHostKey creates a fresh ed25519 host key. The key lives only
// for the lifetime of one listener and is never persisted, so clients
// are expected to skip host key verification.
func generateHostKey() (ssh.Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("build host key signer: %w", err)
	}
	return signer, nil
}
