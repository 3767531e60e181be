package memstore

import (
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// EncodeBasic returns the base64 text of "user:password", the form the
// "basic" scheme secret takes on the wire, for callers that want that
// text itself (e.g. to cache it). Session.Login takes the raw secret bytes
// and json.Marshal base64s them, so its secret is []byte("user:password");
// passing EncodeBasic's result to it would encode the secret twice.
func EncodeBasic(user, password string) []byte {
	return []byte(base64.StdEncoding.EncodeToString([]byte(user + ":" + password)))
}

// RememberPassword bcrypt-hashes password and caches the hash under user,
// so a local "remember me" checkbox can re-verify an operator-entered
// password against the cache without keeping it in the clear, the same
// way the reference server hashes passwords in its basic-auth handler.
func (s *Store) RememberPassword(user, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.rememberedHashes == nil {
		s.rememberedHashes = make(map[string][]byte)
	}
	s.rememberedHashes[user] = hash
	s.mu.Unlock()
	return nil
}

// VerifyRememberedPassword reports whether password matches the hash
// cached for user by RememberPassword. Returns false if nothing was
// cached for user.
func (s *Store) VerifyRememberedPassword(user, password string) bool {
	s.mu.Lock()
	hash, ok := s.rememberedHashes[user]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
