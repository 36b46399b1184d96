package sk

import "io"

// Encryptor protects history archives before they leave the host.
// Encryption uses the public key only; decryption needs the passphrase that
// protects the private key.
type Encryptor interface {
	// Setup performs one-time key generation, protecting the private key
	// with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a DecryptionContext.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the encryptor has what Encrypt needs.
	IsConfigured() bool

	// Extension is appended to archive names produced by Encrypt.
	Extension() string
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
