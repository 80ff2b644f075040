package webhooks

import (
	"crypto/hmac"
	"fmt"
	"strings"
)

// Status is the result class of a signature verification.
type Status int

const (
	StatusVerified Status = iota + 1
	StatusRejected
	StatusMisconfigured
)

func (s Status) String() string {
	switch s {
	case StatusVerified:
		return "verified"
	case StatusRejected:
		return "rejected"
	case StatusMisconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}

// Reason explains a rejection. It is meant for internal logs only and must
// not be sent back to the caller.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMissingSecret      Reason = "missing secret"
	ReasonMissingSignature   Reason = "missing signature"
	ReasonMalformedSignature Reason = "malformed signature"
	ReasonMismatch           Reason = "mismatch"
)

// Outcome is what Verify returns. Received and Computed hold the encoded
// signatures for forensic logging; Computed is empty when no secret is
// configured.
type Outcome struct {
	Status   Status
	Reason   Reason
	Received string
	Computed string
}

func (o Outcome) Verified() bool {
	return o.Status == StatusVerified
}

// Config holds the verifier's construction parameters. Secret is kept out of
// every log and serialisation path.
type Config struct {
	Secret    string `json:"-"`
	Algorithm string
	Encoding  string
	Prefix    string
}

// Verifier checks HMAC signatures against a shared secret fixed at
// construction. It is safe for concurrent use.
type Verifier struct {
	secret    []byte
	algorithm Algorithm
	encoding  Encoding
	prefix    string

	// maxReceived caps Outcome.Received at twice the length of a valid
	// header value.
	maxReceived int
}

// NewVerifier builds a Verifier. An empty secret is accepted and makes every
// verification Misconfigured; an unknown algorithm or encoding is an error.
func NewVerifier(cfg Config) (*Verifier, error) {
	algorithm, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	encoding, err := ParseEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	return newVerifier([]byte(cfg.Secret), algorithm, encoding, cfg.Prefix), nil
}

func newVerifier(secret []byte, algorithm Algorithm, encoding Encoding, prefix string) *Verifier {
	return &Verifier{
		secret:      secret,
		algorithm:   algorithm,
		encoding:    encoding,
		prefix:      prefix,
		maxReceived: 2 * (len(prefix) + encoding.EncodedLen(algorithm.Size())),
	}
}

// Configured reports whether a secret is present.
func (v *Verifier) Configured() bool {
	return len(v.secret) > 0
}

func (v *Verifier) Algorithm() Algorithm {
	return v.algorithm
}

// Verify checks signature against the HMAC of the raw body bytes. The body
// must be exactly what was received; re-encoded JSON will not match.
func (v *Verifier) Verify(body []byte, signature string) Outcome {
	signature = strings.TrimSpace(signature)
	received := v.clip(signature)

	if !v.Configured() {
		return Outcome{Status: StatusMisconfigured, Reason: ReasonMissingSecret, Received: received}
	}

	expected := v.mac(body)
	outcome := Outcome{
		Status:   StatusRejected,
		Received: received,
		Computed: v.prefix + v.encoding.Encode(expected),
	}

	if signature == "" {
		outcome.Reason = ReasonMissingSignature
		return outcome
	}

	actual, err := v.encoding.Decode(v.stripPrefix(signature))
	if err != nil {
		outcome.Reason = ReasonMalformedSignature
		return outcome
	}

	// hmac.Equal runs in time independent of where the inputs differ.
	if !hmac.Equal(expected, actual) {
		outcome.Reason = ReasonMismatch
		return outcome
	}

	outcome.Status = StatusVerified
	return outcome
}

// Sign returns the header value a sender holding the same secret would send
// for body.
func (v *Verifier) Sign(body []byte) (string, error) {
	if !v.Configured() {
		return "", fmt.Errorf("webhook secret is not configured")
	}
	return v.prefix + v.encoding.Encode(v.mac(body)), nil
}

func (v *Verifier) mac(body []byte) []byte {
	h := hmac.New(v.algorithm.hash(), v.secret)
	h.Write(body)
	return h.Sum(nil)
}

// clip bounds a caller-supplied signature before it reaches logs or storage.
func (v *Verifier) clip(signature string) string {
	if len(signature) <= v.maxReceived {
		return signature
	}
	return signature[:v.maxReceived]
}

func (v *Verifier) stripPrefix(signature string) string {
	if v.prefix != "" {
		if rest, ok := strings.CutPrefix(signature, v.prefix); ok {
			return rest
		}
	}
	// Senders commonly prefix with "<algorithm>=" even when not configured to.
	if rest, ok := strings.CutPrefix(signature, v.algorithm.String()+"="); ok {
		return rest
	}
	return signature
}

// Verify checks signature against the hex HMAC-SHA256 of body under secret.
func Verify(body []byte, signature, secret string) Outcome {
	return newVerifier([]byte(secret), SHA256, Hex, "").Verify(body, signature)
}
