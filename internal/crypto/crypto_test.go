package crypto

import (
	"strings"
	"testing"
)

func testKey() []byte {
	key, _ := DeriveKey("test-encryption-key-for-unit-tests")
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()
	original := "sk-ant-REDACTED"

	encrypted, err := Encrypt(original, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if !IsEncrypted(encrypted) {
		t.Fatalf("expected encrypted value to start with %q prefix, got %q", "enc:", encrypted)
	}

	if encrypted == original {
		t.Fatal("encrypted value should differ from plaintext")
	}

	decrypted, err := Decrypt(encrypted, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	if decrypted != original {
		t.Fatalf("round-trip failed: got %q, want %q", decrypted, original)
	}
}

func TestEncryptEmptyString(t *testing.T) {
	key := testKey()

	encrypted, err := Encrypt("", key)
	if err != nil {
		t.Fatalf("Encrypt empty: %v", err)
	}

	if encrypted != "" {
		t.Fatalf("encrypting empty string should return empty, got %q", encrypted)
	}
}

func TestDecryptPlaintextPassthrough(t *testing.T) {
	key := testKey()

	plain := "sk-plain-api-key"
	result, err := Decrypt(plain, key)
	if err != nil {
		t.Fatalf("Decrypt plaintext: %v", err)
	}

	if result != plain {
		t.Fatalf("plaintext passthrough failed: got %q, want %q", result, plain)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key1 := testKey()
	key2, _ := DeriveKey("different-key-entirely")

	encrypted, err := Encrypt("secret", key1)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, err = Decrypt(encrypted, key2)
	if err == nil {
		t.Fatal("expected error when decrypting with wrong key")
	}
}

func TestIsEncrypted(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"enc:abc123", true},
		{"enc:", true},
		{"ENC:abc", false},
		{"plaintext", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsEncrypted(tt.value); got != tt.want {
			t.Errorf("IsEncrypted(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestDeriveKey(t *testing.T) {
	key, err := DeriveKey("short")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key length = %d, want 32", len(key))
	}

	longKey, err := DeriveKey(strings.Repeat("a", 100))
	if err != nil {
		t.Fatalf("DeriveKey long: %v", err)
	}
	if len(longKey) != 32 {
		t.Fatalf("long key length = %d, want 32", len(longKey))
	}

	key2, _ := DeriveKey("different")
	if string(key) == string(key2) {
		t.Fatal("different passphrases should produce different keys")
	}

	_, err = DeriveKey("")
	if err == nil {
		t.Fatal("expected error for empty passphrase")
	}
}

func TestEncryptUniqueNonces(t *testing.T) {
	key := testKey()
	plain := "same-plaintext"

	enc1, _ := Encrypt(plain, key)
	enc2, _ := Encrypt(plain, key)

	if enc1 == enc2 {
		t.Fatal("two encryptions of the same plaintext should produce different ciphertext (unique nonces)")
	}

	dec1, _ := Decrypt(enc1, key)
	dec2, _ := Decrypt(enc2, key)

	if dec1 != plain || dec2 != plain {
		t.Fatalf("both should decrypt to %q, got %q and %q", plain, dec1, dec2)
	}
}

// ─── bot secrets helpers ───

func TestEncryptDecryptBotSecrets(t *testing.T) {
	key := testKey()

	original := map[string]string{
		"app_secret":   "super-secret-value",
		"client_token": "another-secret",
	}

	encrypted, err := EncryptBotSecrets(original, key)
	if err != nil {
		t.Fatalf("EncryptBotSecrets: %v", err)
	}
	for k, v := range encrypted {
		if !IsEncrypted(v) {
			t.Fatalf("secret %q should be encrypted, got %q", k, v)
		}
	}

	decrypted, err := DecryptBotSecrets(encrypted, key)
	if err != nil {
		t.Fatalf("DecryptBotSecrets: %v", err)
	}
	for k, v := range original {
		if decrypted[k] != v {
			t.Fatalf("secret %q round-trip: got %q, want %q", k, decrypted[k], v)
		}
	}
}

func TestEncryptDecryptBotSecretsNilKey(t *testing.T) {
	original := map[string]string{"app_secret": "plain"}

	result, err := EncryptBotSecrets(original, nil)
	if err != nil {
		t.Fatalf("EncryptBotSecrets nil key: %v", err)
	}
	if result["app_secret"] != "plain" {
		t.Fatalf("nil key should not change secrets: got %q", result["app_secret"])
	}
}

// ─── Ed25519 handshake ───

func TestVerifySignatureRoundTrip(t *testing.T) {
	secret := "my-bot-secret"
	timestamp := "1700000000"
	body := []byte(`{"op":13,"d":{"plain_token":"abc","event_ts":"1700000000"}}`)

	if len(DeriveSeed(secret)) != 32 {
		t.Fatalf("seed length = %d, want 32", len(DeriveSeed(secret)))
	}

	signed := SignHandshake(secret, timestamp, string(body))
	ok, err := VerifySignature(secret, timestamp, body, signed)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	secret := "my-bot-secret"
	timestamp := "1700000000"
	body := []byte("original-body")

	signed := SignHandshake(secret, timestamp, string(body))

	ok, err := VerifySignature(secret, timestamp, []byte("tampered-body"), signed)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if ok {
		t.Fatal("expected signature verification to fail for tampered body")
	}
}

func TestDeriveSeedShortSecretRepeats(t *testing.T) {
	seed := DeriveSeed("ab")
	if len(seed) != 32 {
		t.Fatalf("seed length = %d, want 32", len(seed))
	}
	if string(seed[:2]) != "ab" || string(seed[2:4]) != "ab" {
		t.Fatalf("expected repeated secret prefix, got %q", seed)
	}
}
