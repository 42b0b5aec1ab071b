package invoices

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	numberAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	numberSuffix   = 8

	// maxNumberAttempts bounds retries when a generated number collides
	// with an existing invoice
	maxNumberAttempts = 10
)

// NewInvoiceNumber returns a public invoice number of the form
// INV-20240101-k3j9x0a2. The date prefix keeps numbers sortable for
// humans; the random suffix keeps them unguessable.
func NewInvoiceNumber(now time.Time) (string, error) {
	suffix := make([]byte, numberSuffix)
	alphabetLen := big.NewInt(int64(len(numberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate invoice number: %w", err)
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}

	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), suffix), nil
}
