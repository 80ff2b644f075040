package webhooks

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Algorithm is the digest behind the HMAC. Only digests of at least 256 bits
// are offered.
type Algorithm string

const (
	SHA256   Algorithm = "sha256"
	SHA512   Algorithm = "sha512"
	SHA3_256 Algorithm = "sha3-256"
)

func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", SHA256:
		return SHA256, nil
	case SHA512:
		return SHA512, nil
	case SHA3_256:
		return SHA3_256, nil
	default:
		return "", fmt.Errorf("unsupported signature algorithm %q", name)
	}
}

func (a Algorithm) String() string {
	return string(a)
}

// Size is the digest length in bytes.
func (a Algorithm) Size() int {
	return a.hash()().Size()
}

func (a Algorithm) hash() func() hash.Hash {
	switch a {
	case SHA512:
		return sha512.New
	case SHA3_256:
		return sha3.New256
	default:
		return sha256.New
	}
}

// Encoding is how the sender renders the MAC in the header.
type Encoding string

const (
	Hex    Encoding = "hex"
	Base64 Encoding = "base64"
)

func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(name))) {
	case "", Hex:
		return Hex, nil
	case Base64:
		return Base64, nil
	default:
		return "", fmt.Errorf("unsupported signature encoding %q", name)
	}
}

func (e Encoding) Encode(mac []byte) string {
	if e == Base64 {
		return base64.StdEncoding.EncodeToString(mac)
	}
	return hex.EncodeToString(mac)
}

// EncodedLen is the length of an n-byte MAC once encoded.
func (e Encoding) EncodedLen(n int) int {
	if e == Base64 {
		return base64.StdEncoding.EncodedLen(n)
	}
	return hex.EncodedLen(n)
}

func (e Encoding) Decode(signature string) ([]byte, error) {
	if e == Base64 {
		return base64.StdEncoding.DecodeString(signature)
	}
	// hex.DecodeString accepts both cases.
	return hex.DecodeString(signature)
}
