// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes ZenNote tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/zennote/internal/models"
	"github.com/starford/zennote/internal/notebook"
	"github.com/starford/zennote/internal/search"
)

const (
	contractURI       = "zennote://note-format"
	defaultListLimit  = 50
	previewRuneLength = 120
)

// Server wraps the MCP server with ZenNote tools.
type Server struct {
	mcp       *server.MCPServer
	eng       *notebook.Engine
	imagesDir string
}

// New creates a new MCP server with all ZenNote tools registered. The engine
// must already be hydrated. imagesDir receives decoded data URIs; empty
// disables them.
func New(eng *notebook.Engine, imagesDir string) *Server {
	s := &Server{eng: eng, imagesDir: imagesDir}

	s.mcp = server.NewMCPServer(
		"ZenNote",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search live notes by keywords and tag fragments."),
		mcp.WithString("query", mcp.Description("Whitespace separated keywords matched against content and tags")),
		mcp.WithString("tags", mcp.Description("Comma separated tag fragments (case-insensitive)")),
		mcp.WithString("mode", mcp.Description("AND (default) or OR"), mcp.Enum("AND", "OR")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note by id, including tags and images."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Read the format via get_note_contract or the "+
			contractURI+" resource first."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
		mcp.WithString("tags", mcp.Description("Comma separated tag names")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List live notes, pinned first then newest first, with a short preview."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes (default 50)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List tags in display order with live note counts."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("recycle_note",
		mcp.WithDescription("Move a note to the recycle bin. It can be restored for 14 days."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.recycleNote)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Attach an image to a note. data: URIs are stored by the server; "+
			"other URIs are attached as references."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Image URI or data:image/...;base64, URI")),
	), s.attachImage)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the ZenNote note format. "+
			"Call this before creating notes to ensure correct structure."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format",
			mcp.WithResourceDescription("How ZenNote interprets note content, tags and images."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

type noteSummary struct {
	ID        string   `json:"id"`
	Preview   string   `json:"preview"`
	Tags      []string `json:"tags"`
	IsPinned  bool     `json:"isPinned,omitempty"`
	Images    int      `json:"images,omitempty"`
	UpdatedAt int64    `json:"updatedAt"`
}

func summarize(notes []models.Note) []noteSummary {
	out := make([]noteSummary, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteSummary{
			ID:        n.ID,
			Preview:   preview(n.Content),
			Tags:      n.Tags,
			IsPinned:  n.IsPinned,
			Images:    len(n.Images),
			UpdatedAt: n.UpdatedAt,
		})
	}
	return out
}

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	r := []rune(content)
	if len(r) <= previewRuneLength {
		return content
	}
	return string(r[:previewRuneLength]) + "…"
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := search.Filter{
		Query:     req.GetString("query", ""),
		Tags:      splitTags(req.GetString("tags", "")),
		LogicMode: search.ParseLogicMode(req.GetString("mode", "")),
	}
	results := search.Search(s.eng.Notes(), f)
	if len(results) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return jsonResult(summarize(results))
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.eng.Note(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(note)
}

func (s *Server) createNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("content must not be blank"), nil
	}
	tags := splitTags(req.GetString("tags", ""))

	s.eng.EnsureTags(tags)
	note := s.eng.NewNote(content, tags)
	s.eng.AddNote(note)
	s.eng.Flush()
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.ID)), nil
}

func (s *Server) listNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(req.GetFloat("limit", defaultListLimit))
	notes := s.eng.SortedNotes()
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return jsonResult(summarize(notes))
}

func (s *Server) listTags(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags := s.eng.Tags()
	if len(tags) == 0 {
		return mcp.NewToolResultText("no tags"), nil
	}
	lines := make([]string, 0, len(tags))
	for _, t := range tags {
		lines = append(lines, fmt.Sprintf("%s (%d)", t.Name, t.NoteCount))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) recycleNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.eng.MoveToRecycleBin(id) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	s.eng.Flush()
	return mcp.NewToolResultText(fmt.Sprintf("recycled: %s", id)), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func splitTags(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if t := notebook.NormalizeTagName(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
