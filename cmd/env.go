package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiangong-ai/greenlit/internal/adapters"
	"github.com/tiangong-ai/greenlit/internal/catalog"
	"github.com/tiangong-ai/greenlit/internal/execution"
	"github.com/tiangong-ai/greenlit/internal/presentation"
	"github.com/tiangong-ai/greenlit/internal/research"
	"github.com/tiangong-ai/greenlit/internal/tracing"
	"github.com/tiangong-ai/greenlit/internal/workflow"
)

// ExitError carries a process exit code through cobra's error return. Main
// maps it onto os.Exit so degraded workflow runs are scriptable.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode extracts the intended process exit code from err.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// env is the assembled runtime for one command invocation.
type env struct {
	ec        *execution.Context
	registry  *catalog.Registry
	services  *research.Services
	tracing   *tracing.Provider
	formatter *presentation.Formatter
}

// newEnv loads the catalogue and secrets, builds the execution context, and
// wires the research services.
func newEnv(cmd *cobra.Command) (*env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry, err := loadRegistry()
	if err != nil {
		return nil, err
	}

	secrets, err := execution.LoadSecrets(cfg.SecretsFile, credentialKeys(registry))
	if err != nil {
		return nil, err
	}

	enabled := append([]string{}, cfg.EnabledSources...)
	enabled = append(enabled, flagSources...)

	ec, err := execution.New(
		execution.WithCacheDir(cfg.CacheDir),
		execution.WithDryRun(flagDryRun),
		execution.WithEnabledSources(enabled...),
		execution.WithSecrets(secrets),
	)
	if err != nil {
		return nil, err
	}

	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	services := research.NewServices(ec, registry, adapters.DefaultSet(&cfg), &cfg, tp)

	return &env{
		ec:        ec,
		registry:  registry,
		services:  services,
		tracing:   tp,
		formatter: presentation.NewFormatter(cmd.OutOrStdout(), flagJSON),
	}, nil
}

// close flushes tracing.
func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.tracing.Shutdown(ctx)
}

func loadRegistry() (*catalog.Registry, error) {
	if cfg.Sources.CatalogPath != "" {
		return catalog.LoadFile(cfg.Sources.CatalogPath)
	}
	return catalog.LoadBuiltin()
}

// credentialKeys collects every credential key the catalogue references plus
// the optional auth-boosting keys the adapters understand.
func credentialKeys(registry *catalog.Registry) []string {
	keys := []string{"GITHUB_TOKEN", "SEMANTIC_SCHOLAR_API_KEY"}
	for _, d := range registry.List() {
		if d.CredentialKey != "" {
			keys = append(keys, d.CredentialKey)
		}
	}
	return keys
}

func loadProfiles() (map[string]*workflow.Profile, error) {
	dir := cfg.ProfileDir
	if dir == "" {
		dir = defaultProfileDir()
	}
	return workflow.LoadDir(dir)
}

func defaultProfileDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.config/greenlit/profiles"
}
