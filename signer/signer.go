package signer

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"opay/errors"
)

// Signature halves are padded to the curve size so the wire format is always
// 64 bytes of raw r||s, the shape the verifier checks
// (SHA256withECDSA in P1363 form, not ASN.1 DER).
const curveByteSize = 32

// Canonicalize produces the deterministic byte string that is signed and
// re-derived independently by the verifier: fixed field order, ":" separators
// and a two-decimal amount so no locale or float formatting can change it.
func Canonicalize(senderID, receiverID string, amount decimal.Decimal, nonce string) []byte {
	payloadStr := fmt.Sprintf("%s:%s:%s:%s", senderID, receiverID, amount.StringFixed(2), nonce)
	return []byte(payloadStr)
}

// Sign produces a raw r||s ECDSA signature over the SHA-256 digest of the
// canonical bytes.
func Sign(priv *ecdsa.PrivateKey, canonical []byte) ([]byte, error) {
	digest := sha256.Sum256(canonical)

	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeSigningFailure, errors.ErrMsgSigningFailure)
	}

	sig := make([]byte, 2*curveByteSize)
	r.FillBytes(sig[:curveByteSize])
	s.FillBytes(sig[curveByteSize:])
	return sig, nil
}

// SignBase64 signs and encodes for embedding in a transport payload.
func SignBase64(priv *ecdsa.PrivateKey, canonical []byte) (string, error) {
	sig, err := Sign(priv, canonical)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify recomputes the digest and checks a raw r||s signature.
func Verify(pub *ecdsa.PublicKey, canonical, sig []byte) bool {
	if len(sig) != 2*curveByteSize {
		return false
	}
	digest := sha256.Sum256(canonical)
	r := new(big.Int).SetBytes(sig[:curveByteSize])
	s := new(big.Int).SetBytes(sig[curveByteSize:])
	return ecdsa.Verify(pub, digest[:], r, s)
}

// VerifyBase64 decodes a base64 signature and verifies it.
func VerifyBase64(pub *ecdsa.PublicKey, canonical []byte, sigB64 string) bool {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	return Verify(pub, canonical, sig)
}
