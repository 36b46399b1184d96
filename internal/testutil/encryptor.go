package testutil

import (
	"snapkeep/internal/encryption"
)

// NewTestEncryptor creates a deterministic, crypto-free encryptor.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
