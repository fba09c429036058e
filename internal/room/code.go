package room

import (
	"crypto/rand"
	"math/big"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6

	// maxCodeAttempts bounds resampling. 36^6 codes means collisions on
	// every attempt only happen when nearly the whole space is live.
	maxCodeAttempts = 1000
)

// GenerateCode returns a 6-character uppercase alphanumeric code that does
// not collide with any live room. ErrCodeSpaceExhausted after too many
// collisions is a fatal configuration condition for the caller.
func (reg *Registry) GenerateCode() (string, error) {
	buf := make([]byte, codeLength)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		for i := range buf {
			buf[i] = codeAlphabet[randomIndex(len(codeAlphabet))]
		}
		code := string(buf)

		reg.mu.Lock()
		_, taken := reg.rooms[code]
		reg.mu.Unlock()
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		// crypto/rand only fails when the platform entropy source is broken.
		panic(err)
	}
	return int(n.Int64())
}
