package db

// DatabaseProvider abstracts the low-level durable key-value operations so the
// keystore, pending queue and asset cache can share one embedded store without
// knowing the specific backend.
type DatabaseProvider interface {
	// Get retrieves a value by key; returns nil when the key is absent
	Get(key []byte) ([]byte, error)

	// Put stores a key-value pair
	Put(key, value []byte) error

	// Delete removes a key-value pair; absent keys are not an error
	Delete(key []byte) error

	// Has checks if a key exists
	Has(key []byte) (bool, error)

	// IteratePrefix iterates over all key-value pairs with the given prefix
	// in ascending key order. The callback returns false to stop iteration.
	IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error

	// Batch returns a new batch for atomic operations
	Batch() DatabaseBatch

	// Close closes the database
	Close() error
}

// DatabaseBatch provides atomic batch operations
type DatabaseBatch interface {
	// Put adds a key-value pair to the batch
	Put(key, value []byte)

	// Delete adds a deletion to the batch
	Delete(key []byte)

	// Write commits all operations in the batch atomically
	Write() error

	// Reset clears the batch
	Reset()

	// Close releases batch resources
	Close()
}
