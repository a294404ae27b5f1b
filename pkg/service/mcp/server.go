// Package mcp exposes the retrieval engine over the Model Context
// Protocol, so an LLM host can drive turns, searches and session
// inspection as tools.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/provider"
	"github.com/whippetlabs/whippet/pkg/search"
	"github.com/whippetlabs/whippet/pkg/usecase/turn"
	"github.com/whippetlabs/whippet/pkg/utils/logging"
)

const serverVersion = "0.1.0"

// Server wires the turn use case into MCP tool handlers
type Server struct {
	usecase      *turn.UseCase
	orchestrator *search.Orchestrator
}

// New creates an MCP server facade over the turn use case. The orchestrator
// backs the stateless search_catalog tool.
func New(usecase *turn.UseCase, orchestrator *search.Orchestrator) *Server {
	return &Server{usecase: usecase, orchestrator: orchestrator}
}

// Run serves MCP over stdio until the context is cancelled or the client
// disconnects
func (s *Server) Run(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "whippet",
		Version: serverVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "process_turn",
		Description: "Process one user utterance for a session: resolve pronouns, " +
			"list references and corrections against the conversation state, run a " +
			"hybrid catalog search, and return the context block plus ranked results.",
	}, s.ProcessTurnTool)

	mcp.AddTool(server, &mcp.Tool{
		Name: "search_catalog",
		Description: "Search a storefront's catalog and content directly, without " +
			"touching conversation state. Supports category, stock and price filters " +
			"and cursor pagination.",
	}, s.SearchCatalogTool)

	mcp.AddTool(server, &mcp.Tool{
		Name: "lookup_order",
		Description: "Look up one order on the storefront's commerce platform by " +
			"order number or ID.",
	}, s.LookupOrderTool)

	mcp.AddTool(server, &mcp.Tool{
		Name: "show_context",
		Description: "Show the current reference-resolution context block for a " +
			"session without advancing the turn.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {Type: "string", Description: "Session identifier"},
			},
			Required: []string{"session_id"},
		},
	}, s.ShowContextTool)

	mcp.AddTool(server, &mcp.Tool{
		Name: "observe_response",
		Description: "Feed the assistant's final reply back into the session so the " +
			"products, orders and lists it mentioned resolve on the next turn.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {Type: "string", Description: "Session identifier"},
				"text":       {Type: "string", Description: "The assistant's final reply shown to the user"},
			},
			Required: []string{"session_id", "text"},
		},
	}, s.ObserveResponseTool)

	logging.From(ctx).Info("starting MCP server", "version", serverVersion)
	return server.Run(ctx, &mcp.StdioTransport{})
}

type ProcessTurnParams struct {
	SessionID string  `json:"session_id" jsonschema:"Session identifier; turns of one conversation share it"`
	Domain    string  `json:"domain" jsonschema:"Storefront domain the session belongs to"`
	Utterance string  `json:"utterance" jsonschema:"The user's message for this turn"`
	Category  string  `json:"category,omitempty" jsonschema:"Restrict results to one category"`
	InStock   bool    `json:"in_stock,omitempty" jsonschema:"Only return in-stock products"`
	MinPrice  float64 `json:"min_price,omitempty" jsonschema:"Minimum price filter"`
	MaxPrice  float64 `json:"max_price,omitempty" jsonschema:"Maximum price filter"`
	Cursor    string  `json:"cursor,omitempty" jsonschema:"Opaque pagination cursor from a previous page"`
	Limit     int     `json:"limit,omitempty" jsonschema:"Maximum results per page"`
}

// ProcessTurnTool handles the process_turn tool call
func (s *Server) ProcessTurnTool(ctx context.Context, req *mcp.CallToolRequest, params *ProcessTurnParams) (*mcp.CallToolResult, any, error) {
	if params.SessionID == "" || params.Domain == "" || params.Utterance == "" {
		return nil, nil, goerr.New("session_id, domain and utterance are required")
	}

	out, err := s.usecase.ProcessTurn(ctx, turn.ProcessInput{
		SessionID: model.SessionID(params.SessionID),
		Domain:    params.Domain,
		Utterance: params.Utterance,
		Filters: search.Filters{
			Category: params.Category,
			InStock:  params.InStock,
			MinPrice: params.MinPrice,
			MaxPrice: params.MaxPrice,
		},
		Cursor: params.Cursor,
		Limit:  params.Limit,
	})
	if err != nil {
		return nil, nil, err
	}

	return textResult(renderTurn(out)), out, nil
}

type SearchCatalogParams struct {
	Domain   string  `json:"domain" jsonschema:"Storefront domain to search"`
	Query    string  `json:"query" jsonschema:"Search query text"`
	Category string  `json:"category,omitempty" jsonschema:"Restrict results to one category"`
	InStock  bool    `json:"in_stock,omitempty" jsonschema:"Only return in-stock products"`
	MinPrice float64 `json:"min_price,omitempty" jsonschema:"Minimum price filter"`
	MaxPrice float64 `json:"max_price,omitempty" jsonschema:"Maximum price filter"`
	Cursor   string  `json:"cursor,omitempty" jsonschema:"Opaque pagination cursor from a previous page"`
	Limit    int     `json:"limit,omitempty" jsonschema:"Maximum results per page"`
}

// SearchCatalogTool handles the search_catalog tool call
func (s *Server) SearchCatalogTool(ctx context.Context, req *mcp.CallToolRequest, params *SearchCatalogParams) (*mcp.CallToolResult, any, error) {
	if params.Domain == "" || params.Query == "" {
		return nil, nil, goerr.New("domain and query are required")
	}

	resp, err := s.orchestrator.Search(ctx, search.Request{
		Domain: params.Domain,
		Query:  params.Query,
		Filters: search.Filters{
			Category: params.Category,
			InStock:  params.InStock,
			MinPrice: params.MinPrice,
			MaxPrice: params.MaxPrice,
		},
		Cursor: params.Cursor,
		Limit:  params.Limit,
	})
	if err != nil {
		return nil, nil, err
	}

	return textResult(renderSearch(resp)), resp, nil
}

type LookupOrderParams struct {
	Domain string `json:"domain" jsonschema:"Storefront domain the order belongs to"`
	Ref    string `json:"ref" jsonschema:"Order number or ID"`
}

// LookupOrderTool handles the lookup_order tool call
func (s *Server) LookupOrderTool(ctx context.Context, req *mcp.CallToolRequest, params *LookupOrderParams) (*mcp.CallToolResult, any, error) {
	if params.Domain == "" || params.Ref == "" {
		return nil, nil, goerr.New("domain and ref are required")
	}

	order, err := s.orchestrator.LookupOrder(ctx, params.Domain, params.Ref)
	if err != nil {
		return nil, nil, err
	}
	return textResult(provider.FormatOrder(order)), order, nil
}

type ShowContextParams struct {
	SessionID string `json:"session_id" jsonschema:"Session identifier"`
}

// ShowContextTool handles the show_context tool call
func (s *Server) ShowContextTool(ctx context.Context, req *mcp.CallToolRequest, params *ShowContextParams) (*mcp.CallToolResult, any, error) {
	if params.SessionID == "" {
		return nil, nil, goerr.New("session_id is required")
	}

	block, err := s.usecase.Context(ctx, model.SessionID(params.SessionID))
	if err != nil {
		return nil, nil, err
	}
	if block == "" {
		block = "(no conversation state yet)"
	}
	return textResult(block), nil, nil
}

type ObserveResponseParams struct {
	SessionID string `json:"session_id" jsonschema:"Session identifier"`
	Text      string `json:"text" jsonschema:"The assistant's final reply shown to the user"`
}

// ObserveResponseTool handles the observe_response tool call
func (s *Server) ObserveResponseTool(ctx context.Context, req *mcp.CallToolRequest, params *ObserveResponseParams) (*mcp.CallToolResult, any, error) {
	if params.SessionID == "" || params.Text == "" {
		return nil, nil, goerr.New("session_id and text are required")
	}

	if err := s.usecase.ObserveResponse(ctx, model.SessionID(params.SessionID), params.Text); err != nil {
		return nil, nil, err
	}
	return textResult("ok"), nil, nil
}

func renderTurn(out *turn.Output) string {
	var b strings.Builder
	if out.ContextBlock != "" {
		b.WriteString(out.ContextBlock)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Resolved query: %s\n\n", out.ResolvedQuery)
	b.WriteString(renderResultsBlock(out.ResultsBlock, out.Warnings, out.HasMore, out.NextCursor))
	return b.String()
}

func renderSearch(resp *search.Response) string {
	return renderResultsBlock(turn.RenderResults(resp.Results), resp.Warnings, resp.HasMore, resp.NextCursor)
}

func renderResultsBlock(block string, warnings []model.Warning, hasMore bool, cursor string) string {
	var b strings.Builder
	if block == "" {
		b.WriteString("No results.")
	} else {
		b.WriteString(block)
	}
	if hasMore {
		fmt.Fprintf(&b, "\n\nMore results available; cursor: %s", cursor)
	}
	for _, w := range warnings {
		fmt.Fprintf(&b, "\nWarning: %s source failed (%s); results may be incomplete", w.Source, w.Kind)
	}
	return b.String()
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
