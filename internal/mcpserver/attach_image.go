package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	maxImageSize   = 10 << 20 // 10 MB
	imageURLPrefix = "/api/images/"
)

var mimeToExt = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

type attachResult struct {
	ImageID string `json:"imageId"`
	URI     string `json:"uri"`
	Order   int    `json:"order"`
}

func (s *Server) attachImage(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	uri, err := req.RequireString("uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.eng.Note(noteID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", noteID)), nil
	}

	var saved string
	if strings.HasPrefix(uri, "data:") {
		if saved, err = s.saveDataURI(uri); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		uri = imageURLPrefix + filepath.Base(saved)
	}

	img, err := s.eng.AddImage(noteID, uri)
	if err != nil {
		if saved != "" {
			_ = os.Remove(saved)
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.eng.Flush()

	out, _ := json.Marshal(attachResult{ImageID: img.ID, URI: img.URI, Order: img.Order})
	return mcp.NewToolResultText(string(out)), nil
}

// saveDataURI decodes uri into the images dir and returns the file path.
func (s *Server) saveDataURI(uri string) (string, error) {
	if s.imagesDir == "" {
		return "", fmt.Errorf("image storage is not configured; attach a URI instead")
	}
	data, ext, err := decodeDataURI(uri)
	if err != nil {
		return "", err
	}
	if len(data) > maxImageSize {
		return "", fmt.Errorf("file too large: %d bytes (max %d)", len(data), maxImageSize)
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.imagesDir, 0o755); err != nil {
		return "", fmt.Errorf("create images dir: %w", err)
	}
	path := filepath.Join(s.imagesDir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return path, nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := mimeToExt[mime]
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported image type in data URI: %s", mime)
	}
	return data, ext, nil
}

// validateMagicBytes verifies the content matches the declared image type.
func validateMagicBytes(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data
		if len(prefix) > 1024 {
			prefix = prefix[:1024]
		}
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}
	detected := http.DetectContentType(data)
	if mimeToExt[strings.Split(detected, ";")[0]] != ext {
		return fmt.Errorf("content does not match %s (detected: %s)", ext, detected)
	}
	return nil
}
