package interfaces

// KeyStore owns every live secret key in the process. Implementations must
// guarantee that secret material never leaves the store, that mutating
// operations are mutually exclusive, and that deleted or discarded secrets
// are zeroized before their memory is released.
type KeyStore interface {
	// Generate creates a fresh key for the scheme and returns its identifier.
	Generate(scheme SchemeTag) (KeyID, error)

	// Import installs an externally supplied secret after validating that it
	// decodes to a usable scalar or seed for the scheme.
	Import(scheme SchemeTag, secret []byte) (KeyID, error)

	// GetPublic returns the scheme and cached public key for the key id.
	GetPublic(id KeyID) (SchemeTag, PublicKey, error)

	// SchemeOf returns the scheme the key id is bound to for its lifetime.
	SchemeOf(id KeyID) (SchemeTag, error)

	// SignWith signs the message with the stored secret. The secret is used
	// in place and never copied out of its slot.
	SignWith(id KeyID, message []byte, preHashed bool) (Signature, error)

	// Delete removes the key and zeroizes its secret. It reports whether the
	// key existed. After Delete returns, and for any request observing the
	// deletion, signing with this id fails with ErrKeyNotFound.
	Delete(id KeyID) bool

	// Count returns the number of live keys.
	Count() int

	// Close zeroizes and drops every key. The store rejects all operations
	// afterwards.
	Close()
}

// MockKeyStore is a trivial KeyStore for handler tests. Every operation
// succeeds with canned values; no real key material is involved.
type MockKeyStore struct {
	ID     KeyID
	Scheme SchemeTag
	Pub    PublicKey
	Sig    Signature
}

func (m *MockKeyStore) Generate(SchemeTag) (KeyID, error) {
	return m.ID, nil
}

func (m *MockKeyStore) Import(SchemeTag, []byte) (KeyID, error) {
	return m.ID, nil
}

func (m *MockKeyStore) GetPublic(KeyID) (SchemeTag, PublicKey, error) {
	return m.Scheme, m.Pub, nil
}

func (m *MockKeyStore) SchemeOf(KeyID) (SchemeTag, error) {
	return m.Scheme, nil
}

func (m *MockKeyStore) SignWith(KeyID, []byte, bool) (Signature, error) {
	return m.Sig, nil
}

func (m *MockKeyStore) Delete(KeyID) bool { return true }

func (m *MockKeyStore) Count() int { return 1 }

func (m *MockKeyStore) Close() {}
