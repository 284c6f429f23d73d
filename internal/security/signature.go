package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"bookpay/internal/provider"
)

// Verifier authenticates inbound payloads with the provider's shared
// secret. It always operates on the raw request bytes: re-serialized JSON
// would change the byte sequence the signature was computed over.
type Verifier struct{}

// NewVerifier creates a signature verifier.
func NewVerifier() *Verifier { return &Verifier{} }

// Verify checks the provided signature against an HMAC computed per the
// provider profile. When sig.Timestamp is set the signed string is
// "<timestamp>.<body>", otherwise the raw body. Comparison is constant
// time via hmac.Equal.
func (v *Verifier) Verify(p provider.Profile, body []byte, sig provider.Signature) error {
	if sig.Value == "" {
		return fmt.Errorf("%w: empty signature", ErrSignatureInvalid)
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(sig.Value, p.SignaturePrefix))
	if err != nil {
		return fmt.Errorf("%w: malformed signature hex", ErrSignatureInvalid)
	}

	var newHash func() hash.Hash
	switch p.Algorithm {
	case provider.AlgoSHA512:
		newHash = sha512.New
	case provider.AlgoSHA256:
		newHash = sha256.New
	default:
		return fmt.Errorf("%w: unsupported algorithm %q", ErrSignatureInvalid, p.Algorithm)
	}

	mac := hmac.New(newHash, p.Secret)
	if sig.TimestampSigned {
		if sig.Timestamp <= 0 {
			return fmt.Errorf("%w: missing signed timestamp", ErrSignatureInvalid)
		}
		mac.Write([]byte(strconv.FormatInt(sig.Timestamp, 10)))
		mac.Write([]byte("."))
	}
	mac.Write(body)

	if !hmac.Equal(mac.Sum(nil), provided) {
		return fmt.Errorf("%w: signature mismatch", ErrSignatureInvalid)
	}
	return nil
}

// ParseComposite parses the "t=<unix>,v1=<hex>" signature header format.
// Later v1 elements override earlier ones; unknown elements are ignored.
func ParseComposite(header string) (provider.Signature, error) {
	if strings.TrimSpace(header) == "" {
		return provider.Signature{}, fmt.Errorf("%w: missing signature header", ErrSignatureInvalid)
	}

	var sig provider.Signature
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return provider.Signature{}, fmt.Errorf("%w: bad timestamp in signature header", ErrSignatureInvalid)
			}
			sig.Timestamp = ts
			sig.TimestampSigned = true
		case "v1":
			sig.Value = kv[1]
		}
	}
	if sig.Timestamp == 0 || sig.Value == "" {
		return provider.Signature{}, fmt.Errorf("%w: incomplete composite signature header", ErrSignatureInvalid)
	}
	return sig, nil
}

// Sign computes the hex signature for a payload the way Verify expects it.
// Used by adapters for outbound request signing and by tests.
func Sign(p provider.Profile, body []byte, ts int64) string {
	var newHash func() hash.Hash
	if p.Algorithm == provider.AlgoSHA512 {
		newHash = sha512.New
	} else {
		newHash = sha256.New
	}
	mac := hmac.New(newHash, p.Secret)
	if ts > 0 {
		mac.Write([]byte(strconv.FormatInt(ts, 10)))
		mac.Write([]byte("."))
	}
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
