package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keys are the KuCoin API credentials. They live outside the hot-reloaded
// config document and are read once at startup.
type Keys struct {
	Key        string `yaml:"key"`
	Secret     string `yaml:"secret"`
	Passphrase string `yaml:"passphrase"`
}

// LoadKeys reads a YAML or JSON keys file, then applies KC_API_* overrides.
// An empty path relies on the environment alone.
func LoadKeys(path string) (Keys, error) {
	var keys Keys
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Keys{}, err
		}
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return Keys{}, fmt.Errorf("%w: keys file %s: %v", ErrInvalid, path, err)
		}
	}
	setFromEnv(&keys.Key, "KC_API_KEY")
	setFromEnv(&keys.Secret, "KC_API_SECRET")
	setFromEnv(&keys.Passphrase, "KC_API_PASSPHRASE")
	keys.Key = strings.TrimSpace(keys.Key)
	keys.Secret = strings.TrimSpace(keys.Secret)
	keys.Passphrase = strings.TrimSpace(keys.Passphrase)
	if keys.Key == "" || keys.Secret == "" || keys.Passphrase == "" {
		return Keys{}, fmt.Errorf("%w: api key, secret and passphrase are required", ErrInvalid)
	}
	return keys, nil
}

func setFromEnv(dst *string, name string) {
	if val, ok := os.LookupEnv(name); ok && strings.TrimSpace(val) != "" {
		*dst = val
	}
}

// String keeps secrets out of logs.
func (k Keys) String() string {
	return fmt.Sprintf("Keys{key=%s, secret=%s, passphrase=%s}", redact(k.Key), redact(k.Secret), redact(k.Passphrase))
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
