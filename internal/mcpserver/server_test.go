package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/launchgrid/internal/catalog"
	"github.com/starford/launchgrid/internal/launcher"
	"github.com/starford/launchgrid/internal/storage"
	"github.com/starford/launchgrid/internal/testutil"
)

type testEnv struct {
	srv     *Server
	svc     *launcher.Service
	backups storage.Provider
	root    string
	paths   map[string]string
}

func testServer(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	root := testutil.TestRoot(t)
	env := &testEnv{root: root, paths: make(map[string]string)}
	var all []string
	for _, name := range []string{"Alpha", "Beta", "Charlie"} {
		p := testutil.MakeBundle(t, root, name)
		env.paths[name] = p
		all = append(all, p)
	}

	svc := launcher.New(catalog.NewScanner(".app", logger), testutil.TestDB(t), launcher.Options{
		Roots:           []string{root},
		Columns:         6,
		Rows:            4,
		PersistDebounce: time.Hour,
		SettleDelay:     time.Hour,
		Logger:          logger,
	})
	t.Cleanup(svc.Close)
	ctx := context.Background()
	if err := svc.Rescan(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ImportApps(ctx, all); err != nil {
		t.Fatal(err)
	}

	backups, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	env.svc = svc
	env.backups = backups
	env.srv = New(svc, backups)
	return env
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_layout":
		result, err = srv.getLayout(ctx, req)
	case "list_catalog":
		result, err = srv.listCatalog(ctx, req)
	case "export_layout":
		result, err = srv.exportLayout(ctx, req)
	case "validate_import":
		result, err = srv.validateImport(ctx, req)
	case "import_layout":
		result, err = srv.importLayout(ctx, req)
	case "create_folder":
		result, err = srv.createFolder(ctx, req)
	case "rename_folder":
		result, err = srv.renameFolder(ctx, req)
	case "refresh_catalog":
		result, err = srv.refreshCatalog(ctx, req)
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

func TestGetLayout(t *testing.T) {
	env := testServer(t)

	r := callTool(t, env.srv, "get_layout", nil)
	if r.IsError {
		t.Fatalf("get_layout error: %s", resultText(r))
	}
	var view layoutView
	if err := json.Unmarshal([]byte(resultText(r)), &view); err != nil {
		t.Fatal(err)
	}
	if view.Columns != 6 || view.Rows != 4 || len(view.Pages) != 1 {
		t.Fatalf("layout = %dx%d with %d pages", view.Columns, view.Rows, len(view.Pages))
	}
	if got := view.Pages[0][0]; got.Name != "Alpha" || got.Kind != "app" || got.ID != "app_"+env.paths["Alpha"] {
		t.Errorf("first slot = %+v", got)
	}
}

func TestListCatalog(t *testing.T) {
	env := testServer(t)

	text := resultText(callTool(t, env.srv, "list_catalog", nil))
	for _, want := range []string{"installed (3):", "placed (3):", "folders (0):", env.paths["Beta"]} {
		if !strings.Contains(text, want) {
			t.Errorf("catalog missing %q:\n%s", want, text)
		}
	}
}

func TestCreateAndRenameFolder(t *testing.T) {
	env := testServer(t)

	r := callTool(t, env.srv, "create_folder", map[string]any{
		"paths": []any{env.paths["Alpha"], env.paths["Beta"]},
		"name":  "Work",
	})
	if r.IsError {
		t.Fatalf("create_folder error: %s", resultText(r))
	}
	var folder struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &folder); err != nil {
		t.Fatal(err)
	}
	if folder.ID == "" || folder.Name != "Work" {
		t.Fatalf("folder = %+v", folder)
	}

	r = callTool(t, env.srv, "rename_folder", map[string]any{"id": folder.ID, "name": "Tools"})
	if r.IsError {
		t.Fatalf("rename_folder error: %s", resultText(r))
	}
	if text := resultText(callTool(t, env.srv, "list_catalog", nil)); !strings.Contains(text, "Tools\tAlpha, Beta") {
		t.Errorf("renamed folder not listed:\n%s", text)
	}

	r = callTool(t, env.srv, "rename_folder", map[string]any{"id": "missing", "name": "X"})
	if !r.IsError {
		t.Error("expected error renaming an unknown folder")
	}
}

func TestCreateFolder_MissingPaths(t *testing.T) {
	env := testServer(t)
	r := callTool(t, env.srv, "create_folder", map[string]any{"name": "Empty"})
	if !r.IsError {
		t.Error("expected error without paths")
	}
}

func TestExportValidateImport(t *testing.T) {
	env := testServer(t)

	r := callTool(t, env.srv, "export_layout", map[string]any{"save": true})
	if r.IsError {
		t.Fatalf("export_layout error: %s", resultText(r))
	}
	var res struct {
		Checksum string          `json:"checksum"`
		Saved    string          `json:"saved"`
		Document json.RawMessage `json:"document"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Checksum == "" || res.Saved == "" {
		t.Fatalf("export result = %+v", res)
	}
	if _, err := env.backups.Read(res.Saved); err != nil {
		t.Errorf("saved backup unreadable: %v", err)
	}

	doc := string(res.Document)
	r = callTool(t, env.srv, "validate_import", map[string]any{"document": doc})
	if r.IsError || !strings.HasPrefix(resultText(r), "数据验证通过") {
		t.Errorf("validate_import = %q", resultText(r))
	}

	r = callTool(t, env.srv, "import_layout", map[string]any{"document": doc, "if_match": res.Checksum})
	if r.IsError {
		t.Fatalf("import_layout error: %s", resultText(r))
	}

	if err := env.svc.MoveItem(context.Background(), "app_"+env.paths["Charlie"], 0); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, env.srv, "import_layout", map[string]any{"document": doc, "if_match": res.Checksum})
	if !r.IsError {
		t.Error("expected conflict for a stale checksum")
	}
}

func TestValidateImport_Invalid(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "malformed", doc: "{", want: "JSON解析失败"},
		{name: "not an object", doc: "[]", want: "数据格式无效"},
		{name: "no pages", doc: `{"gridColumns":6}`, want: "缺少页面数据"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := callTool(t, env.srv, "validate_import", map[string]any{"document": tt.doc})
			if !r.IsError || !strings.HasPrefix(resultText(r), tt.want) {
				t.Errorf("validate_import = %q (error=%v), want %q", resultText(r), r.IsError, tt.want)
			}
		})
	}
}

func TestRefreshCatalog(t *testing.T) {
	env := testServer(t)
	testutil.MakeBundle(t, env.root, "Delta")

	r := callTool(t, env.srv, "refresh_catalog", nil)
	if r.IsError {
		t.Fatalf("refresh_catalog error: %s", resultText(r))
	}
	if text := resultText(r); !strings.HasPrefix(text, "refreshed: 4 installed, 3 placed") {
		t.Errorf("refresh = %q", text)
	}
}

func TestExportLayout_NoBackupDir(t *testing.T) {
	env := testServer(t)
	srv := New(env.svc, nil)
	r := callTool(t, srv, "export_layout", map[string]any{"save": true})
	if !r.IsError {
		t.Error("expected error saving without a backup directory")
	}
}
