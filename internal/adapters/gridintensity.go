package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/execution"
)

// GridIntensityAdapter shells out to the grid-intensity CLI from the Green
// Web Foundation for grid carbon intensity readings.
type GridIntensityAdapter struct {
	binary string
	runner commandRunner
}

// commandRunner abstracts subprocess execution so tests can inject canned
// output without a real binary on PATH.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, stderr.String())
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// NewGridIntensityAdapter builds the adapter. An empty binary selects
// "grid-intensity" from PATH.
func NewGridIntensityAdapter(binary string) *GridIntensityAdapter {
	if binary == "" {
		binary = "grid-intensity"
	}
	return &GridIntensityAdapter{binary: binary, runner: runCommand}
}

func (a *GridIntensityAdapter) SourceID() string { return "grid_intensity_cli" }

func (a *GridIntensityAdapter) Verify(ctx context.Context, ec *execution.Context) adapter.VerificationResult {
	if _, err := exec.LookPath(a.binary); err != nil {
		return adapter.VerificationResult{
			SourceID:    a.SourceID(),
			Detail:      fmt.Sprintf("binary %q not found on PATH", a.binary),
			Remediation: "install grid-intensity from github.com/thegreenwebfoundation/grid-intensity-go",
		}
	}
	return adapter.VerificationResult{SourceID: a.SourceID(), OK: true, Detail: "binary present"}
}

// Execute reads current intensity. Params: location (required, e.g. "DE"),
// provider (default "Ember").
func (a *GridIntensityAdapter) Execute(ctx context.Context, ec *execution.Context, params adapter.Params) (any, error) {
	location := params.Get("location", "")
	if location == "" {
		return nil, adapter.NewErrorHint(adapter.KindUnsupported, a.SourceID(),
			fmt.Errorf("missing location parameter"),
			"provide a location code, e.g. location=DE")
	}
	provider := params.Get("provider", "Ember")

	out, err := a.runner(ctx, a.binary, "--provider", provider, "--location", location)
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, adapter.NewErrorHint(adapter.KindUnsupported, a.SourceID(), err,
				"install grid-intensity from github.com/thegreenwebfoundation/grid-intensity-go")
		}
		return nil, adapter.NewError(adapter.KindNetwork, a.SourceID(), err)
	}

	var readings []struct {
		Provider  string  `json:"provider"`
		Location  string  `json:"location"`
		Value     float64 `json:"value"`
		Units     string  `json:"units"`
		ValidFrom string  `json:"valid_from"`
	}
	if err := json.Unmarshal(out, &readings); err != nil {
		return nil, adapter.NewError(adapter.KindInvalidResponse, a.SourceID(),
			fmt.Errorf("parse grid-intensity output: %w", err))
	}
	if len(readings) == 0 {
		return nil, adapter.NewError(adapter.KindNotFound, a.SourceID(),
			fmt.Errorf("no intensity reading for location %s", location))
	}

	r := readings[0]
	return evidence.CarbonSnapshot{
		Provider:  r.Provider,
		Location:  r.Location,
		Intensity: r.Value,
		Units:     r.Units,
		Timestamp: r.ValidFrom,
	}, nil
}
