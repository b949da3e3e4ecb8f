package app

// Operation tracks a CLI invocation that may mutate the store.
// Operations start in memory with ID=0. Only mutating commands persist
// them, which gives them an id from the database. That id doubles as the
// version of the database snapshot uploaded to the vault.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string // "success" or "error"
}

// NewOperation creates a new in-memory operation.
func NewOperation(name, parameters string) *Operation {
	return &Operation{
		Name:       name,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}
