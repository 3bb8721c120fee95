/*
File Name:  rng.go

A ChaCha20 stream cipher used as a deterministic CSPRNG, seeded once from the
OS entropy source at process start and then drawn from repeatedly for node
ID derivation and other randomness needs.
*/

package main

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20"
)

// newChaChaRNG seeds a ChaCha20 keystream from crypto/rand and exposes it as
// an io.Reader suitable for bep42.DeriveIdentity or any other consumer that
// wants cryptographically strong, streamable randomness.
func newChaChaRNG() (io.Reader, error) {
	var key [chacha20.KeySize]byte
	var nonce [chacha20.NonceSize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, err
	}
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, err
	}
	return &chachaReader{cipher: cipher}, nil
}

// chachaReader turns a keystream cipher into an io.Reader by XORing it
// against zeros, i.e. reading the raw keystream.
type chachaReader struct {
	cipher *chacha20.Cipher
}

func (r *chachaReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}
