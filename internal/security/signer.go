// Package security covers message integrity between agents: HMAC signatures
// over a canonical serialization, and sealed payloads with nonce and max-age.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Signer signs and verifies messages with a shared key.
type Signer struct {
	key []byte
}

// NewSigner creates a signer. The key must be non-empty.
func NewSigner(key []byte) (*Signer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("security: empty signature key")
	}
	return &Signer{key: key}, nil
}

// Sign returns the hex HMAC-SHA256 of the message's canonical JSON form.
func (s *Signer) Sign(message any) (string, error) {
	canon, err := canonicalJSON(message)
	if err != nil {
		return "", fmt.Errorf("canonicalize message: %w", err)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(canon)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a signature in constant time.
func (s *Signer) Verify(message any, signature string) bool {
	expected, err := s.Sign(message)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Payload is a signed envelope with replay protection.
type Payload struct {
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Nonce     string         `json:"nonce"`
	Signature string         `json:"signature,omitempty"`
}

// Seal wraps data in a signed payload stamped with now.
func (s *Signer) Seal(data map[string]any, now time.Time) (Payload, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return Payload{}, fmt.Errorf("generate nonce: %w", err)
	}
	p := Payload{
		Data:      data,
		Timestamp: now,
		Nonce:     hex.EncodeToString(nonce),
	}
	sig, err := s.Sign(p)
	if err != nil {
		return Payload{}, err
	}
	p.Signature = sig
	return p, nil
}

// Open verifies a sealed payload's signature and age against now.
func (s *Signer) Open(p Payload, now time.Time, maxAge time.Duration) bool {
	if now.Sub(p.Timestamp) > maxAge || p.Timestamp.After(now.Add(maxAge)) {
		return false
	}
	sig := p.Signature
	p.Signature = ""
	return s.Verify(p, sig)
}

// canonicalJSON produces a key-sorted serialization: the value is marshaled,
// decoded into generic maps, and marshaled again, which sorts object keys at
// every level.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
