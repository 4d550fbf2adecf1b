package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes and checks gateway payment signatures:
// hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
type Signer struct {
	secret []byte
}

// NewSigner creates a signer keyed with the gateway key secret
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the signature the gateway issues for a completed payment
func (s *Signer) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the recomputed digest exactly.
// The comparison is constant-time and case-sensitive.
func (s *Signer) Verify(orderID, paymentID, signature string) bool {
	expected := s.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
