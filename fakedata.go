// Synthetic payload generation for exfiltration-simulation exercises. The
// records are entirely fabricated: no real credentials or card numbers are
// involved, the point is realistic-looking bulk data of a controlled size.

package main

import (
	"bytes"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// generateFakeData produces size bytes of comma-separated fake records, each
// holding a username, password, card number, amount, random word and a
// transaction id. The same seed yields the same bytes, which keeps tests and
// repeated simulation runs reproducible; seed 0 randomizes.
func generateFakeData(size int, seed uint64) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("generate data: invalid size %d", size)
	}
	f := gofakeit.New(seed)

	var b bytes.Buffer
	b.Grow(size)
	for n := 0; b.Len() < size; n++ {
		user := f.Username()
		txid := uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s-%d", user, n))

		b.WriteString(user)
		b.WriteByte(',')
		b.WriteString(f.Password(true, true, true, true, false, 12))
		b.WriteByte(',')
		b.WriteString(f.CreditCardNumber(nil))
		b.WriteByte(',')
		fmt.Fprintf(&b, "%d", f.Number(1000, 100000))
		b.WriteByte(',')
		b.WriteString(f.Word())
		b.WriteByte(',')
		b.WriteString(txid.String())
		b.WriteByte(',')
	}
	return b.Bytes()[:size], nil
}
