package exdatum

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/andreyvit/exdatum/toaststore"
)

// MemoryStore is the Config.ExternalStore value selecting a transient
// in-memory external store.
const MemoryStore = ":memory:"

// Config is the TOML-loadable form of Options.
//
//	compression = "lz4"          # none | lz4 | zstd
//	compress_threshold = 2048
//	external_threshold = 8192
//	external_store = "toast.db"  # "" (none), ":memory:" or a Bolt file path
type Config struct {
	Compression       string `toml:"compression"`
	CompressThreshold int    `toml:"compress_threshold"`
	ExternalThreshold int    `toml:"external_threshold"`
	ExternalStore     string `toml:"external_store"`
}

func DefaultConfig() Config {
	return Config{
		Compression:       CompressionLZ4.String(),
		CompressThreshold: DefaultCompressThreshold,
		ExternalThreshold: DefaultExternalThreshold,
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. Unknown keys are an
// error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load exdatum config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load exdatum config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load exdatum config: %w", err)
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	if _, err := ParseCompression(cfg.Compression); err != nil {
		return err
	}
	if cfg.CompressThreshold < 0 {
		return fmt.Errorf("compress_threshold must not be negative")
	}
	if cfg.ExternalThreshold < 0 {
		return fmt.Errorf("external_threshold must not be negative")
	}
	return nil
}

// Options converts cfg into Options, without an external store.
func (cfg Config) Options(types ...AnyType) (Options, error) {
	method, err := ParseCompression(cfg.Compression)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Types:             types,
		Compression:       method,
		CompressThreshold: cfg.CompressThreshold,
		ExternalThreshold: cfg.ExternalThreshold,
	}, nil
}

// OpenCodec builds a Codec from cfg, opening the configured external store.
// Close the Codec to close the store.
func OpenCodec(cfg Config, types ...AnyType) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opt, err := cfg.Options(types...)
	if err != nil {
		return nil, err
	}

	var store *toaststore.Store
	switch cfg.ExternalStore {
	case "":
	case MemoryStore:
		store = toaststore.NewMemory()
	default:
		store, err = toaststore.Open(cfg.ExternalStore, toaststore.Options{})
		if err != nil {
			return nil, err
		}
	}

	if store != nil {
		opt.External = store
	}
	c := NewCodec(opt)
	if store != nil {
		c.owned = store
	}
	return c, nil
}
