// Package config provides type-safe environment variable loading with
// per-type caching. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package automatically loads .env files on first use and uses the
// caarlos0/env library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	import "github.com/agorahq/authkit/core/config"
//
//	type apiConfig struct {
//		BaseURL string        `env:"AUTHKIT_API_BASE_URL,required"`
//		Timeout time.Duration `env:"AUTHKIT_API_TIMEOUT" envDefault:"10s"`
//	}
//
//	func main() {
//		var cfg apiConfig
//
//		// Load with error handling
//		if err := config.Load(&cfg); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&cfg)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per application lifetime:
//
//	var cfg1 apiConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 apiConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// Different types are cached independently, so the API client, Redis and
// cookie configs each get their own cache entry.
package config
