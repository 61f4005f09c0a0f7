// Package config loads morph engine settings from a file and the environment.
//
// Files may be YAML, TOML, or JSON, chosen by extension:
//
//	cache_size: 512
//	policy: empty
//	groups: [admin]
//	key: <base64 AES key>
//
// Environment variables with the MORPH_ prefix override file values, for
// example MORPH_CACHE_SIZE=128 or MORPH_GROUPS=admin,ops.
package config

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/zoobzio/morph"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "MORPH"

// Setting keys.
const (
	KeyCacheSize = "cache_size"
	KeyPolicy    = "policy"
	KeyGroups    = "groups"
	KeyAESKey    = "key"
)

// Load reads path, if non-empty, and the environment into a morph.Config.
// Unset values take morph.DefaultConfig.
func Load(path string) (morph.Config, error) {
	v, err := read(path)
	if err != nil {
		return morph.Config{}, err
	}
	return decode(v)
}

// Options reads path like Load and returns the engine options it describes,
// including WithKey when a key is configured.
func Options(path string) ([]morph.Option, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	opts := []morph.Option{morph.WithConfig(cfg)}
	if raw := strings.TrimSpace(v.GetString(KeyAESKey)); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", KeyAESKey, err)
		}
		opts = append(opts, morph.WithKey(key))
	}
	return opts, nil
}

// New builds an engine from path. extra options are applied after the
// loaded ones.
func New(path string, extra ...morph.Option) (*morph.Engine, error) {
	opts, err := Options(path)
	if err != nil {
		return nil, err
	}
	return morph.New(append(opts, extra...)...)
}

func read(path string) (*viper.Viper, error) {
	v := viper.New()

	def := morph.DefaultConfig()
	v.SetDefault(KeyCacheSize, def.CacheSize)
	v.SetDefault(KeyPolicy, def.Policy.String())
	v.SetDefault(KeyGroups, []string{})
	v.SetDefault(KeyAESKey, "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v, nil
}

func decode(v *viper.Viper) (morph.Config, error) {
	policy, err := morph.ParsePolicy(v.GetString(KeyPolicy))
	if err != nil {
		return morph.Config{}, fmt.Errorf("%s: %w", KeyPolicy, err)
	}

	size := v.GetInt(KeyCacheSize)
	if size < 0 {
		return morph.Config{}, fmt.Errorf("%s must not be negative, got %d", KeyCacheSize, size)
	}

	var groups []morph.Group
	for _, entry := range v.GetStringSlice(KeyGroups) {
		// Environment values arrive as one comma separated string.
		for _, g := range strings.Split(entry, ",") {
			if g = strings.TrimSpace(g); g != "" {
				groups = append(groups, morph.Group(g))
			}
		}
	}

	return morph.Config{
		CacheSize: size,
		Policy:    policy,
		Groups:    groups,
	}, nil
}
