package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/execution"
)

// SynthesisAdapter talks to an OpenAI-compatible responses endpoint and turns
// consolidated evidence into narrative text. Synthesis calls can take minutes
// on deep-research models, so this adapter carries its own generous timeout.
type SynthesisAdapter struct {
	endpoint string
	model    string
	client   httpDoer
}

func NewSynthesisAdapter(endpoint, model string) *SynthesisAdapter {
	return &SynthesisAdapter{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 10 * time.Minute},
	}
}

func (a *SynthesisAdapter) SourceID() string { return "openai_responses" }

func (a *SynthesisAdapter) Verify(ctx context.Context, ec *execution.Context) adapter.VerificationResult {
	if !ec.HasSecret("OPENAI_API_KEY") {
		return adapter.VerificationResult{
			SourceID:    a.SourceID(),
			Detail:      "credential OPENAI_API_KEY not configured",
			Remediation: "set OPENAI_API_KEY in the environment or the secrets file",
		}
	}
	return adapter.VerificationResult{SourceID: a.SourceID(), OK: true, Detail: "credential present"}
}

// Execute runs a prompt. Params: prompt (required), instructions (optional
// system-level steering), model (optional override).
func (a *SynthesisAdapter) Execute(ctx context.Context, ec *execution.Context, params adapter.Params) (any, error) {
	prompt := params.Get("prompt", "")
	if prompt == "" {
		return nil, adapter.NewErrorHint(adapter.KindUnsupported, a.SourceID(),
			fmt.Errorf("missing prompt parameter"),
			"provide a prompt to run")
	}
	key, err := ec.ResolveSecret("OPENAI_API_KEY")
	if err != nil {
		return nil, adapter.NewErrorHint(adapter.KindAuth, a.SourceID(), err,
			"set OPENAI_API_KEY in the environment or the secrets file")
	}
	model := params.Get("model", a.model)

	body := map[string]any{
		"model": model,
		"input": prompt,
	}
	if instructions := params.Get("instructions", ""); instructions != "" {
		body["instructions"] = instructions
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+key)

	var payload struct {
		Model  string `json:"model"`
		Output []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := postJSON(ctx, a.client, a.SourceID(), a.endpoint, h, body, &payload); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, out := range payload.Output {
		if out.Type != "message" {
			continue
		}
		for _, c := range out.Content {
			if c.Type == "output_text" {
				sb.WriteString(c.Text)
			}
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, adapter.NewError(adapter.KindInvalidResponse, a.SourceID(),
			fmt.Errorf("response carries no output text"))
	}

	return evidence.Synthesis{
		Text:        text,
		Model:       payload.Model,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
