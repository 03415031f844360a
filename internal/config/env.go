package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies settings that cannot be expressed as simple CLI
// flags: the API key map and a few typed env overrides.
func (c *Config) ApplyEnvOverrides() error {
	if c == nil {
		return nil
	}

	if err := applyBoolEnv("CHAT_SERVICE_DB_MIGRATE_AT_START", &c.DatastoreMigrateAtStart); err != nil {
		return err
	}
	if err := applyDurationEnv("CHAT_SERVICE_CACHE_SNAPSHOT_TTL", &c.CacheSnapshotTTL); err != nil {
		return err
	}

	// API keys: CHAT_SERVICE_API_KEYS_<USER_ID>=<key-value>.
	c.APIKeys = loadAPIKeysFromEnv()

	return nil
}

// loadAPIKeysFromEnv scans env vars matching CHAT_SERVICE_API_KEYS_<USER_ID>=<key>[,<key>...]
// and returns a map from key value to user ID. Comma-separated values let one
// user hold several keys during rotation.
func loadAPIKeysFromEnv() map[string]string {
	const prefix = "CHAT_SERVICE_API_KEYS_"
	result := map[string]string{}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		eqIdx := strings.IndexByte(env, '=')
		if eqIdx < 0 {
			continue
		}
		userID := strings.ToLower(strings.TrimSpace(env[len(prefix):eqIdx]))
		if userID == "" {
			continue
		}
		for _, key := range strings.Split(env[eqIdx+1:], ",") {
			keyValue := strings.TrimSpace(key)
			if keyValue == "" {
				continue
			}
			result[keyValue] = userID
		}
	}
	return result
}

func applyBoolEnv(name string, dst *bool) error {
	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func applyDurationEnv(name string, dst *time.Duration) error {
	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}
