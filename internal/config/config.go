package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rakunlabs/chu"
	_ "github.com/rakunlabs/chu/loader/external/loaderconsul"
	_ "github.com/rakunlabs/chu/loader/external/loadervault"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"
	"github.com/rakunlabs/tell"
)

var Service = ""

type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	// LLM configures the provider every LLM block runs against; a block
	// cannot name a provider of its own, only override the model.
	LLM LLMConfig `cfg:"llm"`

	// Sandbox selects and configures the Code block execution environment.
	Sandbox Sandbox `cfg:"sandbox"`

	Store     Store       `cfg:"store"`
	Server    Server      `cfg:"server"`
	Telemetry tell.Config `cfg:"telemetry,noprefix"`
}

type Server struct {
	BasePath string `cfg:"base_path"`

	Port string `cfg:"port" default:"8080"`
	Host string `cfg:"host"`

	// UserHeader is loaded but not read by the gateway: the bearer token is
	// taken only from the request body's "token" field, never from an HTTP
	// header.
	UserHeader string `cfg:"user_header" default:"X-User"`

	// StaticTokens maps bearer tokens to usernames for development and for
	// gateways fronted by their own login flow. It is the only token source
	// the gateway's authenticator reads.
	StaticTokens map[string]string `cfg:"static_tokens" log:"-"`
}

// Sandbox configures the Code block ExecutionEnv.
//
// Example YAML:
//
//	sandbox:
//	  kind: js
//	  timeout: 10s
//	  subprocess_root: /tmp/flowgraph-sandbox
type Sandbox struct {
	// Kind selects the execution environment: "js" (default, embedded goja
	// VM, no network/filesystem/process access) or "subprocess" (opt-in,
	// shell commands confined to SubprocessRoot).
	Kind string `cfg:"kind" default:"js"`

	Timeout time.Duration `cfg:"timeout" default:"10s"`

	SubprocessRoot string `cfg:"subprocess_root" default:"/tmp/flowgraph-sandbox"`
}

// LLMConfig describes the default LLM provider backing LLM blocks.
//
// Example YAML:
//
//	llm:
//	  type: anthropic
//	  api_key: "sk-ant-..."
//	  model: "claude-haiku-4-5"
type LLMConfig struct {
	// Type selects the provider. Only "anthropic" is implemented; an empty
	// value leaves graphs without a provider (LLM blocks then skip their
	// run), and any other value fails startup.
	Type string `cfg:"type" json:"type"`

	APIKey string `cfg:"api_key" json:"api_key" log:"-"`

	BaseURL string `cfg:"base_url" json:"base_url"`

	Model string `cfg:"model" json:"model"`

	Proxy string `cfg:"proxy" json:"proxy"`

	InsecureSkipVerify bool `cfg:"insecure_skip_verify" json:"insecure_skip_verify"`
}

type Store struct {
	Postgres *StorePostgres `cfg:"postgres"`
	SQLite   *StoreSQLite   `cfg:"sqlite"`

	// EncryptionKey, if set, enables AES-256-GCM encryption for a stored
	// graph's serialized form in the Postgres and SQLite stores. The key can
	// be any non-empty string; a 32-byte key is derived from it with
	// SHA-256. The LLM API key is not encrypted with it. When empty, no
	// encryption is applied.
	EncryptionKey string `cfg:"encryption_key" log:"-"`
}

type StorePostgres struct {
	TablePrefix     *string        `cfg:"table_prefix"`
	Datasource      string         `cfg:"datasource" log:"-"`
	Schema          string         `cfg:"schema"`
	ConnMaxLifetime *time.Duration `cfg:"conn_max_lifetime"`
	MaxIdleConns    *int           `cfg:"max_idle_conns"`
	MaxOpenConns    *int           `cfg:"max_open_conns"`

	Migrate Migrate `cfg:"migrate"`
}

type StoreSQLite struct {
	TablePrefix *string `cfg:"table_prefix"`
	Datasource  string  `cfg:"datasource"`

	Migrate Migrate `cfg:"migrate"`
}

type Migrate struct {
	Datasource string            `cfg:"datasource" log:"-"`
	Schema     string            `cfg:"schema"`
	Table      string            `cfg:"table"`
	Values     map[string]string `cfg:"values"`
}

func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, path, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("FLOWGRAPH_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}
