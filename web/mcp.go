package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/middleman/distill"
)

// distillTimeout bounds a one-shot MCP distillation: navigate plus a
// handful of lookup attempts.
const distillTimeout = 45 * time.Second

// RegisterMCP registers the middleman tools on an MCP server.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerListTool(srv)
	s.registerDistillTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// addTool wraps a typed endpoint: decode arguments, run, marshal the
// response. Endpoint failures become tool errors, never protocol errors.
func addTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		resp, err := endpoint(ctx, &r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- list patterns ---

type listReq struct{}

func (s *Server) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "middleman_list_patterns",
		Description: "List the loaded page patterns with their priority and domain gate.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	addTool(srv, tool, func(_ context.Context, _ *listReq) (any, error) {
		type item struct {
			Name     string `json:"name"`
			Priority int    `json:"priority"`
			Domain   string `json:"domain,omitempty"`
		}
		items := make([]item, 0, len(s.Templates))
		for _, t := range s.Templates {
			items = append(items, item{Name: t.Name, Priority: t.Priority, Domain: t.Domain})
		}
		return map[string]any{"patterns": items}, nil
	})
}

// --- distill ---

type distillReq struct {
	URL      string `json:"url"`
	Hostname string `json:"hostname"`
}

func (s *Server) registerDistillTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "middleman_distill",
		Description: "Open a URL in a fresh browser, match it against the loaded patterns once, and return the distilled snapshot.",
		InputSchema: inputSchema(map[string]any{
			"url":      map[string]any{"type": "string", "description": "Page to open"},
			"hostname": map[string]any{"type": "string", "description": "Override the hostname used for domain gating"},
		}, []string{"url"}),
	}

	addTool(srv, tool, func(ctx context.Context, r *distillReq) (any, error) {
		return s.distillOnce(ctx, r.URL, r.Hostname)
	})
}

// distillOnce runs a single match round against a throwaway browser.
func (s *Server) distillOnce(ctx context.Context, rawURL, hostname string) (any, error) {
	location, host, err := NormalizeLocation(rawURL)
	if err != nil {
		return nil, err
	}
	if hostname == "" {
		hostname = host
	}

	ctx, cancel := context.WithTimeout(ctx, distillTimeout)
	defer cancel()

	inst, err := s.Manager.Launch(ctx, "")
	if err != nil {
		return nil, err
	}
	defer inst.Close()

	page, err := inst.Open(ctx, location)
	if err != nil {
		return nil, err
	}

	m, err := distill.New(s.Logger).Distill(ctx, hostname, page, s.Templates)
	if errors.Is(err, distill.ErrNoMatch) {
		return map[string]any{"matched": false}, nil
	}
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"matched":  true,
		"template": m.Name,
		"html":     m.HTML,
		"records":  distill.Convert(m.Doc, s.Logger),
	}, nil
}
