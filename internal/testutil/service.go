package testutil

import (
	"testing"
	"time"

	"reqstore/internal/database"
	"reqstore/internal/encryption"
	"reqstore/internal/req"
	"reqstore/internal/script"
	"reqstore/internal/vault"
)

// Env bundles a service with the fakes behind it so tests can inspect them.
type Env struct {
	Service   *req.Service
	DB        *database.SQLiteDatabase
	Vault     *vault.MemoryVault
	Encryptor *encryption.TestEncryptor
	Engine    *script.Engine
	Clock     *StubClock
	IDs       *StubIDGenerator
}

// NewTestService wires a service over an in-memory database, the real
// script engine with a short timeout, a memory vault and the test encryptor.
func NewTestService(t *testing.T, settings req.Settings) *Env {
	t.Helper()

	env := &Env{
		DB:        NewTestDatabase(t),
		Vault:     NewTestVault(),
		Encryptor: NewTestEncryptor(),
		Engine:    script.NewEngine(script.Options{Timeout: 500 * time.Millisecond}, nil),
		Clock:     FixedClock(),
		IDs:       NewStubIDGenerator(),
	}
	env.Service = req.NewService(env.DB, env.Engine, env.Vault, env.Encryptor, req.NewNopLogger(), env.Clock, env.IDs, settings)
	return env
}
