package crypto

import "fmt"

// EncryptBotSecrets encrypts every value in a bot's secrets map
// (webhook app secrets, client secrets, WebSocket access tokens) into a new
// map and returns it; the input map is not modified. If key is nil, the map
// is returned unchanged.
func EncryptBotSecrets(secrets map[string]string, key []byte) (map[string]string, error) {
	if key == nil || len(secrets) == 0 {
		return secrets, nil
	}

	out := make(map[string]string, len(secrets))
	for k, v := range secrets {
		enc, err := Encrypt(v, key)
		if err != nil {
			return secrets, fmt.Errorf("encrypt secret %q: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}

// DecryptBotSecrets decrypts every value in a bot's secrets map into a new
// map and returns it; the input map is not modified.
// Values without the "enc:" prefix are passed through unchanged, so plain
// and encrypted secrets can coexist during a migration.
func DecryptBotSecrets(secrets map[string]string, key []byte) (map[string]string, error) {
	if key == nil || len(secrets) == 0 {
		return secrets, nil
	}

	out := make(map[string]string, len(secrets))
	for k, v := range secrets {
		dec, err := Decrypt(v, key)
		if err != nil {
			return secrets, fmt.Errorf("decrypt secret %q: %w", k, err)
		}
		out[k] = dec
	}
	return out, nil
}
