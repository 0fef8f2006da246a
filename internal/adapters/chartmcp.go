package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/tiangong-ai/greenlit/internal/adapter"
	"github.com/tiangong-ai/greenlit/internal/evidence"
	"github.com/tiangong-ai/greenlit/internal/execution"
)

const chartMCPDefaultEndpoint = "https://antv-studio.alipay.com/api/gpt-vis"

// ChartMCPAdapter renders bar charts through the AntV chart MCP server. The
// server speaks JSON-RPC 2.0 over a single HTTP endpoint.
type ChartMCPAdapter struct {
	endpoint string
	client   httpDoer
	nextID   atomic.Int64
}

func NewChartMCPAdapter(endpoint string) *ChartMCPAdapter {
	if endpoint == "" {
		endpoint = chartMCPDefaultEndpoint
	}
	return &ChartMCPAdapter{endpoint: endpoint, client: newHTTPClient()}
}

func (a *ChartMCPAdapter) SourceID() string { return "antv_chart_mcp" }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *ChartMCPAdapter) call(ctx context.Context, method string, params any, out any) error {
	req := rpcRequest{JSONRPC: "2.0", ID: a.nextID.Add(1), Method: method, Params: params}
	var resp rpcResponse
	if err := postJSON(ctx, a.client, a.SourceID(), a.endpoint, nil, req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return adapter.NewError(adapter.KindInvalidResponse, a.SourceID(),
			fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message))
	}
	if out != nil {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return adapter.NewError(adapter.KindInvalidResponse, a.SourceID(),
				fmt.Errorf("decode rpc result: %w", err))
		}
	}
	return nil
}

func (a *ChartMCPAdapter) Verify(ctx context.Context, ec *execution.Context) adapter.VerificationResult {
	params := map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]string{"name": "greenlit", "version": "0.1"},
	}
	var result struct {
		ServerInfo struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	if err := a.call(ctx, "initialize", params, &result); err != nil {
		return adapter.VerificationResult{
			SourceID:    a.SourceID(),
			Detail:      fmt.Sprintf("initialize failed: %v", err),
			Remediation: "check network connectivity to " + a.endpoint,
		}
	}
	return adapter.VerificationResult{
		SourceID: a.SourceID(),
		OK:       true,
		Detail:   "server " + result.ServerInfo.Name,
	}
}

// Execute renders a bar chart. Params: title (required), data (required,
// JSON array of {category, value} pairs).
func (a *ChartMCPAdapter) Execute(ctx context.Context, ec *execution.Context, params adapter.Params) (any, error) {
	title := params.Get("title", "")
	raw := params.Get("data", "")
	if title == "" || raw == "" {
		return nil, adapter.NewErrorHint(adapter.KindUnsupported, a.SourceID(),
			fmt.Errorf("missing title or data parameter"),
			`provide title and data, e.g. data=[{"category":"repos","value":12}]`)
	}

	var series []evidence.SeriesPoint
	if err := json.Unmarshal([]byte(raw), &series); err != nil {
		return nil, adapter.NewError(adapter.KindUnsupported, a.SourceID(),
			fmt.Errorf("data parameter is not a series: %w", err))
	}
	if len(series) == 0 {
		return nil, adapter.NewError(adapter.KindUnsupported, a.SourceID(),
			fmt.Errorf("data parameter is empty"))
	}

	toolParams := map[string]any{
		"name": "generate_bar_chart",
		"arguments": map[string]any{
			"title": title,
			"data":  series,
		},
	}
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := a.call(ctx, "tools/call", toolParams, &result); err != nil {
		return nil, err
	}
	if result.IsError || len(result.Content) == 0 {
		return nil, adapter.NewError(adapter.KindInvalidResponse, a.SourceID(),
			fmt.Errorf("chart tool returned no content"))
	}

	return evidence.ChartRef{Title: title, ImageURL: result.Content[0].Text}, nil
}
