package testutil

import (
	"reqstore/internal/encryption"
)

// NewTestEncryptor returns the header-prefixing encryptor, already set up
// with an empty passphrase.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
