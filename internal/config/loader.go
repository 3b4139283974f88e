package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// rawConfig is the wire shape the unified CUE value decodes into.
// Durations travel as strings and are parsed afterwards.
type rawConfig struct {
	Engine struct {
		Binary      string `json:"binary"`
		Timeout     string `json:"timeout"`
		MaxAttempts int    `json:"maxAttempts"`
		BackoffBase string `json:"backoffBase"`
		BackoffCap  string `json:"backoffCap"`
	} `json:"engine"`
	Cache struct {
		DefaultTTL    string `json:"defaultTTL"`
		SweepSchedule string `json:"sweepSchedule"`
	} `json:"cache"`
	Queue struct {
		MaxPending  int    `json:"maxPending"`
		MaxAttempts int    `json:"maxAttempts"`
		BackoffBase string `json:"backoffBase"`
		BackoffCap  string `json:"backoffCap"`
		Retention   string `json:"retention"`
	} `json:"queue"`
	Store struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
	} `json:"store"`
}

// Load reads a CUE configuration file, validates it against the embedded
// schema, and returns the decoded Config. An empty path returns the
// schema defaults.
func Load(path string) (*Config, error) {
	var source string
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		source = string(data)
	}
	return Parse(source, path)
}

// Parse validates CUE source against the embedded schema and decodes it.
// The filename is used only for error positions.
func Parse(source, filename string) (*Config, error) {
	cctx := cuecontext.New()

	schema := cctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("internal schema error: %w", err)
	}

	value := schema
	if source != "" {
		if filename == "" {
			filename = "config.cue"
		}
		user := cctx.CompileString(source, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		value = schema.Unify(user)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return raw.toConfig()
}

func (r *rawConfig) toConfig() (*Config, error) {
	cfg := &Config{}
	cfg.Engine.Binary = r.Engine.Binary
	cfg.Engine.MaxAttempts = r.Engine.MaxAttempts
	cfg.Cache.SweepSchedule = r.Cache.SweepSchedule
	cfg.Queue.MaxPending = r.Queue.MaxPending
	cfg.Queue.MaxAttempts = r.Queue.MaxAttempts
	cfg.Store.Enabled = r.Store.Enabled
	cfg.Store.Path = r.Store.Path

	// Durations are schema-constrained to a parseable pattern, so a
	// parse failure here is a schema/decoder mismatch, not user error.
	for _, d := range []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"engine.timeout", r.Engine.Timeout, &cfg.Engine.Timeout},
		{"engine.backoffBase", r.Engine.BackoffBase, &cfg.Engine.BackoffBase},
		{"engine.backoffCap", r.Engine.BackoffCap, &cfg.Engine.BackoffCap},
		{"cache.defaultTTL", r.Cache.DefaultTTL, &cfg.Cache.DefaultTTL},
		{"queue.backoffBase", r.Queue.BackoffBase, &cfg.Queue.BackoffBase},
		{"queue.backoffCap", r.Queue.BackoffCap, &cfg.Queue.BackoffCap},
		{"queue.retention", r.Queue.Retention, &cfg.Queue.Retention},
	} {
		parsed, err := time.ParseDuration(d.src)
		if err != nil {
			return nil, fmt.Errorf("config field %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if cfg.Store.Enabled && cfg.Store.Path == "" {
		return nil, fmt.Errorf("config: store.enabled requires store.path")
	}
	return cfg, nil
}
