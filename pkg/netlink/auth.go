package netlink

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Authentication constants.
const (
	// NonceSize is the size of the per-connection nonce in bytes.
	NonceSize = 16

	// ProofSize is the size of the authentication proof in bytes.
	ProofSize = 32
)

// authInfo binds the derived proof to this protocol and version.
var authInfo = []byte("tether/1 link auth")

// newNonce generates a random per-connection nonce.
func newNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// Authenticate derives the connection proof from a pre-shared key and
// the connection nonce using HKDF-SHA256.
func Authenticate(psk, nonce []byte) ([]byte, error) {
	proof := make([]byte, ProofSize)
	kdf := hkdf.New(sha256.New, psk, nonce, authInfo)
	if _, err := io.ReadFull(kdf, proof); err != nil {
		return nil, fmt.Errorf("failed to derive proof: %w", err)
	}
	return proof, nil
}

// VerifyProof checks a received proof against the expected one in
// constant time.
func VerifyProof(psk, nonce, proof []byte) bool {
	expected, err := Authenticate(psk, nonce)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, proof)
}
