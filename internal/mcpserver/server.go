// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes launcher tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/launchgrid/internal/launcher"
	"github.com/starford/launchgrid/internal/models"
	"github.com/starford/launchgrid/internal/storage"
)

const exportFormatURI = "launchgrid://export-format"

// Server wraps the MCP server with launcher tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *launcher.Service
	backups storage.Provider
}

// New creates a new MCP server with all launcher tools registered.
// backups may be nil, in which case export_layout never saves a copy.
func New(svc *launcher.Service, backups storage.Provider) *Server {
	s := &Server{svc: svc, backups: backups}

	s.mcp = server.NewMCPServer(
		"LaunchGrid",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_layout",
		mcp.WithDescription("Show the launcher grid page by page: every slot with its id, kind and name."),
	), s.getLayout)

	s.mcp.AddTool(mcp.NewTool("list_catalog",
		mcp.WithDescription("List installed applications, the apps placed in the launcher, and folders with their members."),
	), s.listCatalog)

	s.mcp.AddTool(mcp.NewTool("export_layout",
		mcp.WithDescription("Export the layout as a JSON document. "+
			"Read the format first via the "+exportFormatURI+" resource."),
		mcp.WithBoolean("save", mcp.Description("Also store the document in the backup directory")),
	), s.exportLayout)

	s.mcp.AddTool(mcp.NewTool("validate_import",
		mcp.WithDescription("Check a layout JSON document without applying it."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Layout JSON as produced by export_layout")),
	), s.validateImport)

	s.mcp.AddTool(mcp.NewTool("import_layout",
		mcp.WithDescription("Replace the layout with a JSON document. "+
			"Pass the checksum returned by export_layout as if_match to refuse the import when the layout changed in between."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Layout JSON as produced by export_layout")),
		mcp.WithString("if_match", mcp.Description("Layout checksum from export_layout")),
	), s.importLayout)

	s.mcp.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Group applications placed in the launcher into a new folder."),
		mcp.WithArray("paths", mcp.Required(), mcp.WithStringItems(), mcp.Description("Bundle paths of the member apps")),
		mcp.WithString("name", mcp.Description("Folder name (defaults to Untitled)")),
		mcp.WithNumber("insert_at", mcp.Description("Slot index for the folder; omitted means the first member's slot")),
	), s.createFolder)

	s.mcp.AddTool(mcp.NewTool("rename_folder",
		mcp.WithDescription("Rename a folder."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Folder id as listed by list_catalog")),
		mcp.WithString("name", mcp.Required(), mcp.Description("New folder name")),
	), s.renameFolder)

	s.mcp.AddTool(mcp.NewTool("refresh_catalog",
		mcp.WithDescription("Rescan the application directories and reconcile the layout with what is installed."),
	), s.refreshCatalog)

	// Resource: export document format.
	s.mcp.AddResource(
		mcp.NewResource(exportFormatURI, "Layout Export Format",
			mcp.WithResourceDescription("Structure of the layout JSON accepted by import_layout."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readExportFormatResource,
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

type slotView struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
}

type layoutView struct {
	Columns int          `json:"columns"`
	Rows    int          `json:"rows"`
	Pages   [][]slotView `json:"pages"`
}

func toJSON(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) getLayout(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view := layoutView{Columns: snap.Columns, Rows: snap.Rows, Pages: [][]slotView{}}
	for i, slot := range snap.Items {
		if i%snap.PerPage == 0 {
			view.Pages = append(view.Pages, []slotView{})
		}
		p := len(view.Pages) - 1
		view.Pages[p] = append(view.Pages[p], slotView{ID: slot.ID(), Kind: slot.Kind.String(), Name: slot.Name()})
	}
	return toJSON(view), nil
}

func (s *Server) listCatalog(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "installed (%d):\n", len(snap.Available))
	for _, a := range snap.Available {
		fmt.Fprintf(&b, "  %s\t%s\n", a.Name, a.Path)
	}
	fmt.Fprintf(&b, "placed (%d):\n", len(snap.Apps))
	for _, a := range snap.Apps {
		fmt.Fprintf(&b, "  %s\t%s\n", a.Name, a.Path)
	}
	fmt.Fprintf(&b, "folders (%d):\n", len(snap.Folders))
	for _, f := range snap.Folders {
		fmt.Fprintf(&b, "  %s\t%s\t%s\n", f.ID, f.Name, strings.Join(appNames(f.Apps), ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func appNames(apps []models.ApplicationRecord) []string {
	out := make([]string, len(apps))
	for i, a := range apps {
		out[i] = a.Name
	}
	return out
}

type exportResult struct {
	Checksum string            `json:"checksum"`
	Saved    string            `json:"saved,omitempty"`
	Document launcher.Document `json:"document"`
}

func (s *Server) exportLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, digest, err := s.svc.ExportWithDigest(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := exportResult{Checksum: digest, Document: doc}

	if req.GetBool("save", false) {
		if s.backups == nil {
			return mcp.NewToolResultError("no backup directory configured"), nil
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		name := "layout-" + time.Now().Format("20060102-150405") + ".json"
		if err := s.backups.Write(name, data); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save backup: %v", err)), nil
		}
		res.Saved = name
	}
	return toJSON(res), nil
}

func (s *Server) validateImport(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, _ := launcher.ValidateImport([]byte(doc))
	if !v.Valid {
		return mcp.NewToolResultError(v.Message), nil
	}
	return mcp.NewToolResultText(v.Message), nil
}

func (s *Server) importLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.Import(ctx, []byte(doc), req.GetString("if_match", ""))
	if err != nil {
		if !v.Valid {
			return mcp.NewToolResultError(v.Message), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("imported: " + v.Message), nil
}

func (s *Server) createFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := req.RequireStringSlice("paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folder, err := s.svc.CreateFolder(ctx, paths, req.GetString("name", ""), req.GetInt("insert_at", -1))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toJSON(folder), nil
}

func (s *Server) renameFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.RenameFolder(ctx, id, name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed: %s", id)), nil
}

func (s *Server) refreshCatalog(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.Rescan(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("refreshed: %d installed, %d placed, %d folders, %d pages",
		len(snap.Available), len(snap.Apps), len(snap.Folders), snap.Pages())), nil
}

func (s *Server) readExportFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      exportFormatURI,
			MIMEType: "text/markdown",
			Text:     ExportFormatContract,
		},
	}, nil
}
