package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matthewjhunter/healthtips"
	"github.com/matthewjhunter/healthtips/internal/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverVersion = "0.1.0"

// server is the health tips MCP server.
type server struct {
	engine   *healthtips.Engine
	reloader *reloader // non-nil when --reload is enabled
}

func newServer(engine *healthtips.Engine) *server {
	return &server{engine: engine}
}

// mcpServer registers every tool on a fresh SDK server.
func (s *server) mcpServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "healthtips", Version: serverVersion}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "tips_search",
		Description: "Search health tips by title or category. Returns matching tips with their IDs, titles, categories, and bodies. An empty query returns no tips.",
	}, s.tipsSearch)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "tip_get",
		Description: "Get one health tip by ID. Does not record a view.",
	}, s.tipGet)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "categories_list",
		Description: "List the preference categories users can choose from, in display order.",
	}, s.categoriesList)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "recommendations_for",
		Description: "List the tips recommended to a registered user, i.e. every tip in one of the user's preferred categories.",
	}, s.recommendationsFor)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "content_reload",
		Description: "Re-read the tips dataset if it changed on disk, e.g. after a feed import. Returns whether a reload happened and the tip count.",
	}, s.contentReload)

	return srv
}

// run serves over stdin/stdout until ctx is cancelled or the client disconnects.
func (s *server) run(ctx context.Context) error {
	logging.Info().Int("tips", s.engine.TipCount()).Msg("healthtips-mcp starting")
	return s.mcpServer().Run(ctx, &mcp.StdioTransport{})
}

// --- Result helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	r := textResult(fmt.Sprintf(format, args...))
	r.IsError = true
	return r
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(b)), nil, nil
}

// --- Tool handlers ---

func (s *server) tipsSearch(ctx context.Context, req *mcp.CallToolRequest, in tipsSearchInput) (*mcp.CallToolResult, any, error) {
	tips := s.engine.Search(in.Query)
	if tips == nil {
		tips = []healthtips.HealthTip{}
	}
	return jsonResult(tips)
}

func (s *server) tipGet(ctx context.Context, req *mcp.CallToolRequest, in tipGetInput) (*mcp.CallToolResult, any, error) {
	tip, err := s.engine.GetTip(in.ID)
	if errors.Is(err, healthtips.ErrTipNotFound) {
		return errorResult("Recommendation not found: %d", in.ID), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(tip)
}

func (s *server) categoriesList(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	return jsonResult(healthtips.Categories)
}

func (s *server) recommendationsFor(ctx context.Context, req *mcp.CallToolRequest, in emailInput) (*mcp.CallToolResult, any, error) {
	if in.Email == "" {
		return errorResult("email is required"), nil, nil
	}
	user, err := s.engine.GetUser(ctx, in.Email)
	if errors.Is(err, healthtips.ErrUserNotFound) {
		return errorResult("no user with email %s", in.Email), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	set, err := s.engine.RecommendationSet(ctx, user.Email)
	if err != nil {
		return nil, nil, err
	}
	if set.Tips == nil {
		set.Tips = []healthtips.HealthTip{}
	}
	return jsonResult(struct {
		Email string `json:"email"`
		*healthtips.RecommendationSet
	}{user.Email, set})
}

func (s *server) contentReload(ctx context.Context, req *mcp.CallToolRequest, in emptyInput) (*mcp.CallToolResult, any, error) {
	var (
		changed bool
		err     error
	)
	if s.reloader != nil {
		changed, err = s.reloader.reload()
	} else {
		changed, err = s.engine.ReloadContent()
	}
	if err != nil {
		return errorResult("reload failed: %v", err), nil, nil
	}
	return jsonResult(map[string]any{
		"reloaded": changed,
		"tips":     s.engine.TipCount(),
	})
}
