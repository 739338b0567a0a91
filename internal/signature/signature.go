// Package signature proves that a webhook genuinely originates from the
// payment aggregator. CinetPay signs a fixed concatenation of payload fields
// with a shared secret; anything that does not reproduce that HMAC is
// untrusted and must not mutate any state.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Fields are the payload values covered by the signature, in the order the
// aggregator concatenates them.
type Fields struct {
	SiteID          string
	TransactionID   string
	TransactionDate string
	Amount          string
	Currency        string
}

// Verifier checks webhook signatures with a server-side shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Compute returns the hex HMAC-SHA256 over the documented field order.
func (v *Verifier) Compute(f Fields) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(f.SiteID + f.TransactionID + f.TransactionDate + f.Amount + f.Currency))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the supplied signature matches the payload fields.
// Missing fields simply fail verification; this never errors.
func (v *Verifier) Verify(f Fields, supplied string) bool {
	if supplied == "" {
		return false
	}
	return hmac.Equal([]byte(v.Compute(f)), []byte(supplied))
}
