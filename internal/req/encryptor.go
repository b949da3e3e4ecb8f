package req

import "io"

// Encryptor protects published baseline documents. Archiving needs only the
// public key; reading an encrypted archive back needs the passphrase that
// guards the private key.
type Encryptor interface {
	// Setup creates the key pair. The private key is stored sealed with
	// passphrase. Existing keys are never overwritten.
	Setup(passphrase string) error

	// Encrypt streams the ciphertext of r to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock opens the private key. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether Setup has produced usable keys.
	IsConfigured() bool
}

// DecryptionContext decrypts archives with a private key held only in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
