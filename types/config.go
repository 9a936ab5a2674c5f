package types

const (
	// DefaultMaxPages bounds a guest linear memory to 4 MiB.
	DefaultMaxPages uint32 = 64
	// DefaultMaxCallDepth bounds nested contract calls.
	DefaultMaxCallDepth = 16
	// DefaultMemoryCacheSize is the number of compiled modules kept unpinned.
	DefaultMemoryCacheSize = 100
)

// Config defines the configuration of a VM.
type Config struct {
	Cache    CacheOptions   `json:"cache" mapstructure:"cache"`
	Limits   Limits         `json:"limits" mapstructure:"limits"`
	GasCosts GasCosts       `json:"gas_costs" mapstructure:"gas_costs"`
	Mode     AccountingMode `json:"mode" mapstructure:"mode"`
}

// Limits bounds the resources one execution may use.
type Limits struct {
	MaxPages     uint32 `json:"max_pages" mapstructure:"max_pages"`
	MaxCallDepth int    `json:"max_call_depth" mapstructure:"max_call_depth"`
}

// CacheOptions configures the compiled module cache.
type CacheOptions struct {
	// BaseDir persists bytecode on disk when set. Only one VM may use a directory at a time.
	BaseDir         string `json:"base_dir" mapstructure:"base_dir"`
	MemoryCacheSize int    `json:"memory_cache_size" mapstructure:"memory_cache_size"`
}

// DefaultConfig returns a configuration suitable for tests and local runs.
func DefaultConfig() Config {
	return Config{
		Cache: CacheOptions{MemoryCacheSize: DefaultMemoryCacheSize},
		Limits: Limits{
			MaxPages:     DefaultMaxPages,
			MaxCallDepth: DefaultMaxCallDepth,
		},
		GasCosts: DefaultGasCosts(),
		Mode:     DefaultAccountingMode,
	}
}

// WithDefaults returns c with zero limits replaced by their defaults.
func (c Config) WithDefaults() Config {
	if c.Limits.MaxPages == 0 {
		c.Limits.MaxPages = DefaultMaxPages
	}
	if c.Limits.MaxCallDepth == 0 {
		c.Limits.MaxCallDepth = DefaultMaxCallDepth
	}
	return c
}
