package crypto

import (
	"fmt"

	"github.com/rakunlabs/flowgraph/internal/config"
)

// EncryptLLMConfig encrypts the sensitive field of an LLMConfig (api_key)
// and returns the modified config. If key is nil, the config is returned
// unchanged (no-op).
func EncryptLLMConfig(cfg config.LLMConfig, key []byte) (config.LLMConfig, error) {
	if key == nil || cfg.APIKey == "" {
		return cfg, nil
	}

	enc, err := Encrypt(cfg.APIKey, key)
	if err != nil {
		return cfg, fmt.Errorf("encrypt api_key: %w", err)
	}
	cfg.APIKey = enc

	return cfg, nil
}

// DecryptLLMConfig decrypts the sensitive field of an LLMConfig (api_key)
// and returns the modified config. If key is nil, the config is returned
// unchanged (no-op). A value with no "enc:" prefix is left as-is.
func DecryptLLMConfig(cfg config.LLMConfig, key []byte) (config.LLMConfig, error) {
	if key == nil || cfg.APIKey == "" {
		return cfg, nil
	}

	dec, err := Decrypt(cfg.APIKey, key)
	if err != nil {
		return cfg, fmt.Errorf("decrypt api_key: %w", err)
	}
	cfg.APIKey = dec

	return cfg, nil
}
