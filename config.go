package morph

// Config holds engine settings that can be loaded from files or the
// environment. Zero fields take the values from DefaultConfig.
type Config struct {
	// CacheSize bounds the accessor entries kept strongly reachable.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"`

	// Policy is the null/empty policy for fields that do not set one.
	Policy NullPolicy `yaml:"policy" mapstructure:"policy"`

	// Groups are activated on every map call.
	Groups []Group `yaml:"groups" mapstructure:"groups"`
}

// DefaultConfig returns the settings used for unset Config fields.
func DefaultConfig() Config {
	return Config{
		CacheSize: DefaultCacheSize,
		Policy:    PolicyNone,
	}
}
