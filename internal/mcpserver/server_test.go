package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/storybundle/internal/bundle"
	"github.com/starford/storybundle/internal/bundleservice"
	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/render"
	"github.com/starford/storybundle/internal/storage"
	"github.com/starford/storybundle/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	_, store := testutil.TestContent(t)
	db := testutil.TestDB(t)
	renderer := render.New(render.NewGoldmark())
	builder := &bundle.Builder{
		Store: store,
		Assembler: &bundle.Assembler{
			Store:    store,
			Renderer: renderer,
			Layout:   bundle.DefaultLayout(),
			Meta:     models.Meta{BundleFormat: "0.1", Generator: "storybundle test"},
		},
		DemosDir: "demos",
	}
	srv := New(bundleservice.NewService(store, db, builder, renderer))
	return srv, store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "build_bundle":
		result, err = srv.buildBundle(ctx, req)
	case "validate_bundle":
		result, err = srv.validateBundle(ctx, req)
	case "list_versions":
		result, err = srv.listVersions(ctx, req)
	case "render_markdown":
		result, err = srv.renderMarkdown(ctx, req)
	case "get_bundle_contract":
		result, err = srv.getBundleContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestBuildAndListVersions(t *testing.T) {
	srv, store := testServer(t)
	testutil.SampleVersion(t, store, "1.0")

	r := callTool(t, srv, "list_versions", map[string]interface{}{})
	if text := resultText(r); text != "no versions built" {
		t.Errorf("list before build = %q", text)
	}

	r = callTool(t, srv, "build_bundle", map[string]interface{}{"version": "1.0"})
	if r.IsError {
		t.Fatalf("build failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"path": "demos/v1.0/en/bundle.json"`) || !strings.Contains(text, `"skipped": true`) {
		t.Errorf("build report = %s", text)
	}

	r = callTool(t, srv, "list_versions", map[string]interface{}{})
	if text := resultText(r); text != "1.0" {
		t.Errorf("list after build = %q", text)
	}
}

func TestBuildMissingVersion(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "build_bundle", map[string]interface{}{"version": "4.2"})
	if !r.IsError {
		t.Error("expected error for missing version")
	}
	r = callTool(t, srv, "build_bundle", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing argument")
	}
}

func TestValidateBundle(t *testing.T) {
	srv, store := testServer(t)
	testutil.SampleVersion(t, store, "1.0")
	_ = callTool(t, srv, "build_bundle", map[string]interface{}{"version": "1.0"})

	r := callTool(t, srv, "validate_bundle", map[string]interface{}{"version": "1.0", "lang": "en"})
	if text := resultText(r); text != "no issues found" {
		t.Errorf("validate = %q", text)
	}

	r = callTool(t, srv, "validate_bundle", map[string]interface{}{"version": "1.0", "lang": "es"})
	if !r.IsError || !strings.Contains(resultText(r), "bundle not found") {
		t.Errorf("validate skipped language = %q", resultText(r))
	}
}

func TestRenderMarkdown(t *testing.T) {
	srv, store := testServer(t)
	testutil.SampleVersion(t, store, "1.0")
	_ = callTool(t, srv, "build_bundle", map[string]interface{}{"version": "1.0"})

	r := callTool(t, srv, "render_markdown", map[string]interface{}{
		"markdown": "*See* [[fresco]]",
		"version":  "1.0",
		"lang":     "en",
	})
	text := resultText(r)
	if !strings.Contains(text, "<em>See</em>") || !strings.Contains(text, ">Fresco</a>") {
		t.Errorf("render = %q", text)
	}

	r = callTool(t, srv, "render_markdown", map[string]interface{}{"markdown": "[[fresco]]"})
	if text := resultText(r); !strings.Contains(text, ">fresco</a>") {
		t.Errorf("render without bundle = %q", text)
	}
}

func TestBundleContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_bundle_contract", map[string]interface{}{})
	text := resultText(r)
	for _, want := range []string{
		"### project.csv",
		"| story_id | project_id, id_historia,",
		"| x | - |",
		"| source_image | imagen_fuente,",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q", want)
		}
	}

	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != ContractURI || tc.Text != text {
		t.Errorf("resource = %+v", contents[0])
	}
}
