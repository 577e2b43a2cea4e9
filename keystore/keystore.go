package keystore

import (
	"log/slog"
	"sync"

	"github.com/ruteri/enclave-signer/interfaces"
	"github.com/ruteri/enclave-signer/signer"
)

// Store is the in-memory key store. Every live secret in the process is
// owned by exactly one slot; secrets enter through Generate or Import and
// leave only through zeroization.
//
// Locking discipline: mu guards the slot index and serializes mutations
// (Generate, Import, Delete, Close). Each slot carries its own RWMutex so
// signing on distinct keys proceeds independently. Delete removes the slot
// from the index under mu, then takes the slot's write lock to wait out
// in-flight signs before zeroizing; a sign that raced the removal observes
// the slot's deleted flag under the read lock and reports key_not_found
// instead of touching zeroized memory.
type Store struct {
	mu     sync.RWMutex
	slots  map[interfaces.KeyID]*slot
	closed bool
	log    *slog.Logger
}

type slot struct {
	mu      sync.RWMutex
	scheme  interfaces.SchemeTag
	secret  signer.SecretKey
	public  interfaces.PublicKey
	deleted bool
}

// New creates an empty store.
func New(log *slog.Logger) *Store {
	return &Store{
		slots: make(map[interfaces.KeyID]*slot),
		log:   log,
	}
}

// Generate creates a fresh key for the scheme and returns its identifier.
func (s *Store) Generate(scheme interfaces.SchemeTag) (interfaces.KeyID, error) {
	impl, err := signer.ForTag(scheme)
	if err != nil {
		return interfaces.KeyID{}, err
	}

	secret, err := impl.Generate()
	if err != nil {
		return interfaces.KeyID{}, err
	}

	return s.install(scheme, secret)
}

// Import installs an externally supplied secret. The secret bytes are
// validated and copied; the caller's buffer is not retained and may be
// zeroized by the caller afterwards.
func (s *Store) Import(scheme interfaces.SchemeTag, secret []byte) (interfaces.KeyID, error) {
	impl, err := signer.ForTag(scheme)
	if err != nil {
		return interfaces.KeyID{}, err
	}

	key, err := impl.Import(secret)
	if err != nil {
		return interfaces.KeyID{}, err
	}

	return s.install(scheme, key)
}

// install assigns a fresh id to the key. On any failure the key is
// zeroized before the error propagates so no secret survives an
// abandoned slot.
func (s *Store) install(scheme interfaces.SchemeTag, secret signer.SecretKey) (interfaces.KeyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		secret.Zeroize()
		return interfaces.KeyID{}, interfaces.ErrStoreClosed
	}

	id := interfaces.NewKeyID()
	for _, taken := s.slots[id]; taken; _, taken = s.slots[id] {
		id = interfaces.NewKeyID()
	}

	s.slots[id] = &slot{
		scheme: scheme,
		secret: secret,
		public: secret.Public(),
	}
	s.log.Debug("installed key", "keyID", id, "scheme", scheme, "keys", len(s.slots))
	return id, nil
}

// GetPublic returns the scheme and cached public key for the key id.
func (s *Store) GetPublic(id interfaces.KeyID) (interfaces.SchemeTag, interfaces.PublicKey, error) {
	sl, err := s.lookup(id)
	if err != nil {
		return "", nil, err
	}

	sl.mu.RLock()
	defer sl.mu.RUnlock()
	if sl.deleted {
		return "", nil, interfaces.ErrKeyNotFound
	}
	return sl.scheme, sl.public, nil
}

// SchemeOf returns the scheme the key id is bound to.
func (s *Store) SchemeOf(id interfaces.KeyID) (interfaces.SchemeTag, error) {
	scheme, _, err := s.GetPublic(id)
	return scheme, err
}

// SignWith signs the message with the stored secret, in place, under the
// slot's read lock so a concurrent delete cannot zeroize mid-signature.
func (s *Store) SignWith(id interfaces.KeyID, message []byte, preHashed bool) (interfaces.Signature, error) {
	sl, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sl.mu.RLock()
	defer sl.mu.RUnlock()
	if sl.deleted {
		return nil, interfaces.ErrKeyNotFound
	}
	return sl.secret.Sign(message, preHashed)
}

// Delete removes the key and zeroizes its secret, reporting whether the
// key existed. The id disappears from the index immediately; zeroization
// waits for in-flight signs on the slot to drain.
func (s *Store) Delete(id interfaces.KeyID) bool {
	s.mu.Lock()
	sl, ok := s.slots[id]
	if ok {
		delete(s.slots, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	sl.destroy()
	s.log.Debug("deleted key", "keyID", id, "scheme", sl.scheme)
	return true
}

// Count returns the number of live keys.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Close zeroizes every key and rejects all subsequent operations. Called
// on shutdown so no secret outlives the store even if the process keeps
// running.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	slots := make([]*slot, 0, len(s.slots))
	for id, sl := range s.slots {
		slots = append(slots, sl)
		delete(s.slots, id)
	}
	s.mu.Unlock()

	for _, sl := range slots {
		sl.destroy()
	}
	s.log.Info("key store closed", "zeroized", len(slots))
}

func (s *Store) lookup(id interfaces.KeyID) (*slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, interfaces.ErrStoreClosed
	}
	sl, ok := s.slots[id]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return sl, nil
}

// destroy waits for readers to drain, then zeroizes the secret exactly
// once. Safe to call on a slot already removed from the index.
func (sl *slot) destroy() {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.deleted {
		return
	}
	sl.deleted = true
	sl.secret.Zeroize()
}
