// Package roomcrypto is the payload black box: a password-derived
// symmetric key and one-shot authenticated encryption of a single
// message chunk. The server never sees this package; only clients
// import it, and only to protect message bodies from the relay.
package roomcrypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length in bytes of a derived room key.
const KeySize = 32

// roomSalt is fixed so that every participant who types the same room
// password converges on the same key without any out-of-band exchange.
// It carries no secrecy of its own.
var roomSalt = [16]byte{0x52, 0x6f, 0x6f, 0x6d, 0x52, 0x65, 0x6c, 0x61, 0x79, 0x53, 0x61, 0x6c, 0x74, 0x21, 0x21, 0x00}

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// chunkTag marks a sealed chunk as the final (and, here, only) chunk of
// a stream. Decrypt refuses anything else.
const chunkTag byte = 0x03

const (
	nonceSize = chacha20poly1305.NonceSizeX
	// HeaderLen is the length of the random header prefixed to every
	// ciphertext blob: a fresh nonce plus the chunk tag.
	HeaderLen = nonceSize + 1
)

// Overhead is the number of bytes a ciphertext blob carries beyond the
// cleartext it encodes: HeaderLen plus the AEAD authentication tag.
const Overhead = HeaderLen + chacha20poly1305.Overhead

var (
	// ErrShortBlob is returned by Decrypt when the input is too small
	// to even contain a header.
	ErrShortBlob = errors.New("roomcrypto: ciphertext blob shorter than header")
	// ErrNotFinalChunk is returned by Decrypt when the chunk tag is
	// not the final-chunk marker.
	ErrNotFinalChunk = errors.New("roomcrypto: chunk is not tagged final")
)

// Key is a derived 256-bit room key.
type Key [KeySize]byte

// DeriveKey runs a moderate-cost, memory-hard KDF over password with
// the fixed room salt. The same password always yields the same key.
func DeriveKey(password []byte) (Key, error) {
	if len(password) == 0 {
		return Key{}, fmt.Errorf("roomcrypto: empty password")
	}
	var key Key
	copy(key[:], argon2.IDKey(password, roomSalt[:], argonTime, argonMemory, argonThreads, KeySize))
	return key, nil
}

// Encrypt produces a ciphertext blob for one message. The blob layout
// is a fresh random header followed by a single AEAD chunk tagged
// final: len(blob) == len(cleartext) + Overhead.
func Encrypt(cleartext []byte, key Key) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("roomcrypto: init aead: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("roomcrypto: generate nonce: %w", err)
	}

	blob := make([]byte, 0, HeaderLen+len(cleartext)+chacha20poly1305.Overhead)
	blob = append(blob, nonce...)
	blob = append(blob, chunkTag)
	blob = aead.Seal(blob, nonce, cleartext, []byte{chunkTag})
	return blob, nil
}

// Decrypt parses the header of blob, initialises the AEAD with key, and
// opens the single chunk, requiring it to carry the final-chunk tag.
func Decrypt(blob []byte, key Key) ([]byte, error) {
	if len(blob) < HeaderLen {
		return nil, ErrShortBlob
	}
	nonce := blob[:nonceSize]
	tag := blob[nonceSize]
	chunk := blob[HeaderLen:]

	if tag != chunkTag {
		return nil, ErrNotFinalChunk
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("roomcrypto: init aead: %w", err)
	}

	cleartext, err := aead.Open(nil, nonce, chunk, []byte{chunkTag})
	if err != nil {
		return nil, fmt.Errorf("roomcrypto: open: %w", err)
	}
	return cleartext, nil
}
