// Package mcpserver exposes the import_cost computation as a single MCP
// tool, in the teacher's NewServer/AddTool/Run(stdio) shape
// (internal/mcp/server.go) but stripped to the one tool this program offers.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/importcost"
	"github.com/standardbeagle/importcost/internal/config"
	"github.com/standardbeagle/importcost/internal/types"
	"github.com/standardbeagle/importcost/internal/version"
)

// Server wraps an mcp.Server configured with the import_cost tool.
type Server struct {
	server *mcp.Server
	cfg    config.Config
}

// New builds a Server ready to Start over stdio.
func New(cfg config.Config) *Server {
	s := &Server{cfg: cfg}

	if cfg.CacheDir != "" {
		_ = importcost.UseCacheDir(cfg.CacheDir)
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "importcost-mcp-server",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

// Start runs the server over stdio until ctx is cancelled or the transport
// closes.
func (s *Server) Start(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

type importCostParams struct {
	FileName   string `json:"file_name"`
	Source     string `json:"source"`
	Language   string `json:"language,omitempty"`
	Concurrent *bool  `json:"concurrent,omitempty"`
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "import_cost",
		Description: "Compute the raw and gzipped bundle size each external import in a JS/TS/Vue/Svelte file would add.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file_name": {
					Type:        "string",
					Description: "Absolute or project-relative path of the source file, used to locate its nearest node_modules",
				},
				"source": {
					Type:        "string",
					Description: "Full text of the source file",
				},
				"language": {
					Type:        "string",
					Description: "One of javascript, typescript, vue, svelte; inferred from file_name's extension when omitted",
				},
				"concurrent": {
					Type:        "boolean",
					Description: "Size multiple imports in parallel (default true)",
				},
			},
			Required: []string{"file_name", "source"},
		},
	}, s.handleImportCost)
}

func (s *Server) handleImportCost(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params importCostParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResult(fmt.Errorf("invalid parameters: %w", err)), nil
	}

	lang := types.DetectLanguage(params.FileName)
	if params.Language != "" {
		lang = types.ParseLanguage(params.Language)
	}

	runCfg := types.Config{Concurrent: s.cfg.Concurrent, MaxCallTime: s.cfg.MaxCallTime, Externals: s.cfg.Externals}
	if params.Concurrent != nil {
		runCfg.Concurrent = *params.Concurrent
	}

	em := importcost.Run(ctx, params.FileName, []byte(params.Source), lang, runCfg)
	defer em.Cleanup()

	for event := range em.Events() {
		switch event.Type {
		case importcost.EventDone:
			return jsonResult(event.Entries)
		case importcost.EventError:
			return errorResult(event.Err), nil
		}
	}

	return errorResult(fmt.Errorf("import_cost: no terminal event received")), nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
