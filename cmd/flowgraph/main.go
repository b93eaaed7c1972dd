package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/flowgraph/internal/auth"
	"github.com/rakunlabs/flowgraph/internal/config"
	"github.com/rakunlabs/flowgraph/internal/execenv"
	"github.com/rakunlabs/flowgraph/internal/graph"
	"github.com/rakunlabs/flowgraph/internal/llmprovider"
	"github.com/rakunlabs/flowgraph/internal/server"
	"github.com/rakunlabs/flowgraph/internal/store"
)

var (
	name    = "flowgraph"
	version = "v0.0.0"
)

func main() {
	config.Service = name + "/" + version

	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	authenticator := auth.StaticAuthenticator{Tokens: cfg.Server.StaticTokens}
	authorizer := auth.GraphAuthorizer{Store: st}

	execEnv, err := newExecEnv(cfg.Sandbox)
	if err != nil {
		return fmt.Errorf("failed to create execution environment: %w", err)
	}

	llmProvider, err := newLLMProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}

	srv, err := server.New(cfg.Server, st, authenticator, authorizer, execEnv, llmProvider)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("starting gateway", "host", cfg.Server.Host, "port", cfg.Server.Port)

	return srv.Start(ctx)
}

func newExecEnv(cfg config.Sandbox) (graph.ExecutionEnv, error) {
	switch cfg.Kind {
	case "subprocess":
		slog.Info("using subprocess execution environment", "root", cfg.SubprocessRoot)
		return &execenv.Subprocess{SandboxRoot: cfg.SubprocessRoot, Timeout: cfg.Timeout}, nil
	case "js", "":
		slog.Info("using in-process JS execution environment")
		return execenv.NewJSSandbox(), nil
	default:
		return nil, fmt.Errorf("unknown sandbox kind %q", cfg.Kind)
	}
}

func newLLMProvider(cfg config.LLMConfig) (graph.LLMProvider, error) {
	switch cfg.Type {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is not configured")
		}
		slog.Info("using Anthropic LLM provider")
		return llmprovider.NewAnthropic(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Proxy, cfg.InsecureSkipVerify)
	case "":
		slog.Warn("no LLM provider configured; LLM blocks will fail to run")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider type %q", cfg.Type)
	}
}
