package crypto

import (
	"crypto/ed25519"
	"fmt"
)

const ed25519SeedSize = ed25519.SeedSize // 32

// DeriveSeed turns an arbitrary-length bot secret into a 32-byte Ed25519
// seed by repeating it until it is at least seed-length, then truncating —
// the same construction the handshake's reference implementation uses so
// that a short app secret still yields a valid signing key.
func DeriveSeed(secret string) []byte {
	if secret == "" {
		return make([]byte, ed25519SeedSize)
	}

	repeated := make([]byte, 0, ed25519SeedSize+len(secret))
	for len(repeated) < ed25519SeedSize {
		repeated = append(repeated, secret...)
	}
	return repeated[:ed25519SeedSize]
}

// SignHandshake signs eventTimestamp+plainToken with the key derived from
// secret, returning the raw signature bytes; the verification webhook
// response carries them hex-encoded.
func SignHandshake(secret, eventTimestamp, plainToken string) []byte {
	key := ed25519.NewKeyFromSeed(DeriveSeed(secret))
	message := []byte(eventTimestamp + plainToken)
	return ed25519.Sign(key, message)
}

// VerifySignature verifies a webhook request's Ed25519 signature over
// timestamp+body using the key derived from secret.
func VerifySignature(secret, timestamp string, body, signature []byte) (bool, error) {
	key := ed25519.NewKeyFromSeed(DeriveSeed(secret))
	pub := key.Public().(ed25519.PublicKey)

	message := append([]byte(timestamp), body...)
	if len(signature) != ed25519.SignatureSize {
		return false, fmt.Errorf("signature size %d, want %d", len(signature), ed25519.SignatureSize)
	}
	return ed25519.Verify(pub, message, signature), nil
}
