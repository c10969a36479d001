// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `SIGNUP_`, where `__` maps to “.”
     (e.g., `SIGNUP_WEBHOOK__URL → webhook.url`).

After merging, every string of the form `vault:<mount>/<path>#<key>` is
replaced by the secret it names.  The tree is then unmarshalled into typed
structs, defaulted, validated, enriched with the runtime root path, and
cached in an `atomic.Pointer` for lock-free reads.  `Reload()` calls
`Load()` again with the same secret source and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans — root discovery, YAML read, vault references.
  • ERROR spans — YAML parse, env overlay, vault, unmarshal, validation.
  • INFO  span  — final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`, so
    `go run ./cmd/web` works from any sub-directory.
  • The Vault client is built lazily, only when a reference is present, so
    deployments without Vault never need VAULT_ADDR.
*/
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/signup/internal/vault"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "SIGNUP_"

// secretTTL bounds how long a resolved secret is cached between reloads.
const secretTTL = 5 * time.Minute

// SecretResolver reads one key of a KV secret.  *vault.Client satisfies it.
type SecretResolver interface {
	GetKV(ctx context.Context, path, key string, ttl time.Duration) (string, error)
}

// Secrets builds the resolver on first use.  A nil Secrets makes every
// vault reference a load error.
type Secrets func(ctx context.Context) (SecretResolver, error)

// listKeys are the keys whose env override is a comma-separated list.
var listKeys = map[string]bool{"http.allowed_origins": true}

var (
	current     atomic.Pointer[Config]
	lastSecrets atomic.Pointer[Secrets]
)

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves SIGNUP_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv(EnvPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

// Root returns the directory configuration is read from.
func Root() string { return rootDir() }

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves vault references, validates,
// and caches Config.
func Load(ctx context.Context, secrets Secrets) (*Config, error) {
	lastSecrets.Store(&secrets)

	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing).  Existing env vars win.
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: SIGNUP_WEBHOOK__URL → webhook.url.  List keys take
	// comma-separated values.
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, EnvPrefix), "__", "."))
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, k, secrets); err != nil {
		zap.S().Errorw("config vault resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	applyDefaults(&cfg)
	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"webhook_host", hostOf(cfg.Webhook.URL),
		"workers", cfg.Webhook.Workers,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// resolveSecrets swaps every vault reference in k for its value.  Keys are
// visited in sorted order so errors are deterministic.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, secrets Secrets) error {
	all := k.All()
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var r SecretResolver
	for _, key := range keys {
		s, ok := all[key].(string)
		if !ok {
			continue
		}
		path, field, isRef, err := vault.ParseRef(s)
		if !isRef {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}

		if r == nil {
			if secrets == nil {
				return fmt.Errorf("%s: vault reference but no vault configured", key)
			}
			if r, err = secrets(ctx); err != nil {
				return fmt.Errorf("vault client: %w", err)
			}
			if r == nil {
				return errors.New("vault client: nil resolver")
			}
		}

		val, err := r.GetKV(ctx, path, field, secretTTL)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		zap.S().Debugw("config value resolved from vault", "key", key, "path", path)
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config { return current.Load() }

// Reload re-reads every layer with the secret source of the last Load.
func Reload(ctx context.Context) error {
	var s Secrets
	if p := lastSecrets.Load(); p != nil {
		s = *p
	}
	_, err := Load(ctx, s)
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hostOf keeps credentials and paths out of the boot log.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
