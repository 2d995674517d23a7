package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	loadEnvOnce sync.Once

	// cache holds one loaded value per concrete config type.
	cache sync.Map // reflect.Type -> any
)

// Load populates cfg from environment variables using its env struct tags.
// The first call for a given type parses the environment; subsequent calls
// return the cached value. A .env file in the working directory, if present,
// is loaded into the process environment before the first parse.
func Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: Load expects a non-nil pointer to a struct, got %T", cfg)
	}

	loadEnvOnce.Do(func() {
		// Missing .env files are not an error; real deployments use the
		// process environment directly.
		_ = godotenv.Load()
	})

	typ := rv.Elem().Type()
	if cached, ok := cache.Load(typ); ok {
		rv.Elem().Set(reflect.ValueOf(cached))
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", typ, err)
	}

	// First writer wins when two goroutines race the same type.
	actual, _ := cache.LoadOrStore(typ, rv.Elem().Interface())
	rv.Elem().Set(reflect.ValueOf(actual))
	return nil
}

// MustLoad is Load but panics on failure. Intended for application startup
// where a missing required variable should abort the process.
func MustLoad(cfg any) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
