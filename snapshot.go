package connectclient

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Snapshot is the plain-data persisted form of a ServiceOptions: the
// timeout triple in integer milliseconds, the factory kind name, and the
// transport fields. Credentials are never included; re-supply them after
// rehydration. Turn a snapshot back into live options with Rehydrate.
type Snapshot struct {
	Endpoint             string  `mapstructure:"endpoint"`
	UserAgent            string  `mapstructure:"user_agent"`
	InitialTimeoutMillis int64   `mapstructure:"initial_timeout_millis"`
	TimeoutMultiplier    float64 `mapstructure:"timeout_multiplier"`
	MaxTimeoutMillis     int64   `mapstructure:"max_timeout_millis"`
	FactoryKind          string  `mapstructure:"factory_kind"`
}

// Snapshot returns the persisted form of o.
func (o *ServiceOptions) Snapshot() Snapshot {
	return Snapshot{
		Endpoint:             o.endpoint,
		UserAgent:            o.userAgent,
		InitialTimeoutMillis: o.policy.initial.Milliseconds(),
		TimeoutMultiplier:    o.policy.multiplier,
		MaxTimeoutMillis:     o.policy.max.Milliseconds(),
		FactoryKind:          o.factoryKind,
	}
}

// Rehydrate turns a snapshot back into live options.
//
// The factory kind is re-resolved: a kind registered in registry wins,
// the built-in default kind falls back to the default pool-backed
// factory, and any other kind is a fatal configuration error wrapping
// ErrUnknownKind. A nil registry means DefaultRegistry; a nil pool means
// DefaultPool.
func (s Snapshot) Rehydrate(registry *FactoryRegistry, pool *SharedResourcePool) (*ServiceOptions, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if pool == nil {
		pool = DefaultPool()
	}

	if err := ValidateKind(s.FactoryKind); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	policy, err := NewRetryTimeoutPolicy(
		time.Duration(s.InitialTimeoutMillis)*time.Millisecond,
		s.TimeoutMultiplier,
		time.Duration(s.MaxTimeoutMillis)*time.Millisecond,
	)
	if err != nil {
		return nil, err
	}

	factory, err := registry.Resolve(s.FactoryKind)
	if err != nil {
		if !errors.Is(err, ErrUnknownKind) {
			return nil, err
		}
		if s.FactoryKind != DefaultFactoryKind {
			return nil, err
		}
		factory = NewDefaultExecutorFactory(pool)
	}

	return &ServiceOptions{
		endpoint:    s.Endpoint,
		userAgent:   s.UserAgent,
		policy:      policy,
		factory:     factory,
		factoryKind: factory.Kind(),
		registry:    registry,
		pool:        pool,
	}, nil
}

// LoadSnapshot reads a snapshot from path. The format follows the file
// extension (yaml, json, toml, or any other format viper reads).
func LoadSnapshot(path string) (Snapshot, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var s Snapshot
	if err := v.Unmarshal(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return s, nil
}

// WriteFile writes the snapshot to path in the format the file extension
// names.
func (s Snapshot) WriteFile(path string) error {
	v := viper.New()
	v.Set("endpoint", s.Endpoint)
	v.Set("user_agent", s.UserAgent)
	v.Set("initial_timeout_millis", s.InitialTimeoutMillis)
	v.Set("timeout_multiplier", s.TimeoutMultiplier)
	v.Set("max_timeout_millis", s.MaxTimeoutMillis)
	v.Set("factory_kind", s.FactoryKind)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}
