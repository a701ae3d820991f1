package security

import (
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner([]byte("test-key"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestEmptyKeyRejected(t *testing.T) {
	if _, err := NewSigner(nil); err == nil {
		t.Fatal("empty key accepted")
	}
}

func TestSignVerifyRoundtrip(t *testing.T) {
	s := newTestSigner(t)
	msg := map[string]any{"sku": "water", "qty": 5}

	sig, err := s.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Verify(msg, sig) {
		t.Fatal("valid signature rejected")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	s := newTestSigner(t)
	msg := map[string]any{"sku": "water", "qty": 5}
	sig, err := s.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}

	msg["qty"] = 50
	if s.Verify(msg, sig) {
		t.Fatal("tampered message verified")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	a := newTestSigner(t)
	b, err := NewSigner([]byte("other-key"))
	if err != nil {
		t.Fatal(err)
	}

	msg := map[string]any{"sku": "water"}
	sig, err := a.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}
	if b.Verify(msg, sig) {
		t.Fatal("signature verified under the wrong key")
	}
}

// The signature must not depend on field order of the Go value: a struct and
// an equivalent map serialize to the same canonical form.
func TestCanonicalFormIgnoresFieldOrder(t *testing.T) {
	s := newTestSigner(t)

	type msgA struct {
		SKU string `json:"sku"`
		Qty int    `json:"qty"`
	}
	type msgB struct {
		Qty int    `json:"qty"`
		SKU string `json:"sku"`
	}

	sigA, err := s.Sign(msgA{SKU: "water", Qty: 5})
	if err != nil {
		t.Fatal(err)
	}
	sigB, err := s.Sign(msgB{Qty: 5, SKU: "water"})
	if err != nil {
		t.Fatal(err)
	}
	if sigA != sigB {
		t.Fatalf("signatures differ across field order: %s != %s", sigA, sigB)
	}
}

func TestSealOpen(t *testing.T) {
	s := newTestSigner(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	p, err := s.Seal(map[string]any{"action": "quote"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if p.Nonce == "" || p.Signature == "" {
		t.Fatal("sealed payload missing nonce or signature")
	}

	if !s.Open(p, now.Add(time.Minute), 5*time.Minute) {
		t.Fatal("fresh payload rejected")
	}
	if s.Open(p, now.Add(10*time.Minute), 5*time.Minute) {
		t.Fatal("expired payload accepted")
	}

	tampered := p
	tampered.Data = map[string]any{"action": "refund"}
	if s.Open(tampered, now.Add(time.Minute), 5*time.Minute) {
		t.Fatal("tampered payload accepted")
	}
}

func TestSealedNoncesDiffer(t *testing.T) {
	s := newTestSigner(t)
	now := time.Now()
	a, err := s.Seal(map[string]any{"k": "v"}, now)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Seal(map[string]any{"k": "v"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if a.Nonce == b.Nonce {
		t.Fatal("nonce reused")
	}
}
