// Package mcpserver exposes the query surface as MCP tools over stdio, so
// agent tooling can look up entities, traverse relationships and assemble
// profiles without a bespoke protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/weft/internal/index"
	"github.com/agentic-research/weft/internal/query"
)

// Server wraps an MCP stdio server over one Assembler.
type Server struct {
	asm *query.Assembler
	mcp *server.MCPServer
}

func New(asm *query.Assembler, version string) *Server {
	s := &Server{
		asm: asm,
		mcp: server.NewMCPServer("weft", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("get_entity",
		mcp.WithDescription("Look up one entity by primary or alternate key."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Entity type, e.g. account, endpoint, group.")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Primary or alternate key; matching is case-insensitive.")),
	), s.handleGetEntity)

	s.mcp.AddTool(mcp.NewTool("get_related",
		mcp.WithDescription("Traverse one declared relationship from an entity, in source-data order."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Entity type of the starting entity.")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Key of the starting entity.")),
		mcp.WithString("relationship", mcp.Required(), mcp.Description("Relationship name, e.g. devices, members, memberOf.")),
	), s.handleGetRelated)

	s.mcp.AddTool(mcp.NewTool("get_profile",
		mcp.WithDescription("Assemble a declared composite profile rooted at one entity."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Entity type of the root entity.")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Key of the root entity.")),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Profile name, e.g. account-overview.")),
	), s.handleGetProfile)

	s.mcp.AddTool(mcp.NewTool("index_status",
		mcp.WithDescription("Report coordinator state, snapshot version and build warnings."),
	), s.handleStatus)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleGetEntity(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ent, ok := s.asm.GetByKey(entityType, key)
	if !ok {
		return mcp.NewToolResultText("not found"), nil
	}
	return jsonResult(ent)
}

func (s *Server) handleGetRelated(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	relationship, err := req.RequireString("relationship")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	related := s.asm.GetRelated(entityType, key, relationship)
	if related == nil {
		related = []*index.Entity{}
	}
	return jsonResult(related)
}

func (s *Server) handleGetProfile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	profile, err := req.RequireString("profile")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, ok := s.asm.GetProfile(entityType, key, profile)
	if !ok {
		return mcp.NewToolResultText("not found"), nil
	}
	return jsonResult(p)
}

func (s *Server) handleStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.asm.Status())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
