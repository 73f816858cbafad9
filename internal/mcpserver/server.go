// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes bundle build tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/storybundle/internal/apperr"
	"github.com/starford/storybundle/internal/bundleservice"
)

// ContractURI is the resource URI of the source contract.
const ContractURI = "storybundle://bundle-format"

// Server wraps the MCP server with bundle tools.
type Server struct {
	mcp *server.MCPServer
	svc *bundleservice.Service
}

// New creates a new MCP server with all bundle tools registered.
func New(svc *bundleservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"storybundle",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("build_bundle",
		mcp.WithDescription("Build the bundle of every language of a version and report "+
			"warnings and advisories per language."),
		mcp.WithString("version", mcp.Required(), mcp.Description("Version to build (e.g. 1.0)")),
	), s.buildBundle)

	s.mcp.AddTool(mcp.NewTool("validate_bundle",
		mcp.WithDescription("Re-run the bundle heuristics (shifted CSV columns, filename "+
			"buttons, missing source URLs) on a built bundle."),
		mcp.WithString("version", mcp.Required(), mcp.Description("Version of the bundle")),
		mcp.WithString("lang", mcp.Required(), mcp.Description("Language of the bundle (e.g. en)")),
	), s.validateBundle)

	s.mcp.AddTool(mcp.NewTool("list_versions",
		mcp.WithDescription("List the versions that have at least one built bundle."),
	), s.listVersions)

	s.mcp.AddTool(mcp.NewTool("render_markdown",
		mcp.WithDescription("Render a Markdown snippet the way bundle layers and glossary "+
			"terms are rendered. With version and lang, glossary links use that bundle's titles."),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("Markdown text with optional [[term_id]] links")),
		mcp.WithString("version", mcp.Description("Optional version of the glossary bundle")),
		mcp.WithString("lang", mcp.Description("Optional language of the glossary bundle")),
	), s.renderMarkdown)

	s.mcp.AddTool(mcp.NewTool("get_bundle_contract",
		mcp.WithDescription("Returns the source layout and accepted column aliases. "+
			"Call this before authoring or fixing story tables."),
	), s.getBundleContract)

	// Resource: source contract.
	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Bundle Source Contract",
			mcp.WithResourceDescription("Source tables, directories and column aliases read by the bundle build."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type languageReport struct {
	Lang       string   `json:"lang"`
	Path       string   `json:"path,omitempty"`
	Skipped    bool     `json:"skipped,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Advisories []string `json:"advisories,omitempty"`
}

type buildReport struct {
	Version   string           `json:"version"`
	Error     string           `json:"error,omitempty"`
	Languages []languageReport `json:"languages"`
}

func (s *Server) buildBundle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	version, err := req.RequireString("version")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Build(ctx, version)
	if res == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report := buildReport{Version: res.Version, Languages: make([]languageReport, len(res.Languages))}
	for i, l := range res.Languages {
		report.Languages[i] = languageReport{
			Lang:       l.Language,
			Path:       l.Path,
			Skipped:    l.Skipped,
			Warnings:   l.Warnings,
			Advisories: l.Advisories,
		}
	}
	if err != nil {
		report.Error = err.Error()
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(string(out)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) validateBundle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	version, err := req.RequireString("version")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lang, err := req.RequireString("lang")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	issues, err := s.svc.ValidateBundle(ctx, version, lang)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("bundle not found: v%s/%s", version, lang)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(issues) == 0 {
		return mcp.NewToolResultText("no issues found"), nil
	}
	return mcp.NewToolResultText(strings.Join(issues, "\n")), nil
}

func (s *Server) listVersions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	vs, err := s.svc.Versions(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(vs) == 0 {
		return mcp.NewToolResultText("no versions built"), nil
	}
	return mcp.NewToolResultText(strings.Join(vs, "\n")), nil
}

func (s *Server) renderMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markdown, err := req.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	version := req.GetString("version", "")
	lang := req.GetString("lang", "")
	html, err := s.svc.RenderMarkdown(ctx, markdown, version, lang)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("bundle not found: v%s/%s", version, lang)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(html), nil
}

func (s *Server) getBundleContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(BundleContract()), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     BundleContract(),
		},
	}, nil
}
