package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	uriScheme = "seekhost://"

	// MaxResourceSize is the largest file returned as a resource (1MB).
	MaxResourceSize = 1024 * 1024
)

// registerResources registers the index list and the file template.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         uriScheme + "indices",
		Name:        "indices",
		Description: "Indices of the account",
		MIMEType:    "application/json",
	}, s.handleIndicesResource)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "indices/{indexId}/files/{documentId}",
		Name:        "index-file",
		Description: "Original bytes of a file indexed with index_file",
	}, s.handleFileResource)
}

func (s *Server) handleIndicesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	list, err := s.listIndices(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling indices: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleFileResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	indexID, docID, ok := parseFileURI(uri)
	if !ok {
		return nil, NewResourceNotFoundError(uri)
	}

	data, err := s.backend.GetFile(ctx, s.apikey, indexID, docID)
	if err != nil {
		return nil, MapError(err)
	}
	if len(data) > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: fmt.Sprintf("file too large: %d bytes (max %d)", len(data), MaxResourceSize),
		}
	}

	contents := &mcp.ResourceContents{URI: uri, MIMEType: mimeType(data)}
	if contents.MIMEType == "text/plain" {
		contents.Text = string(data)
	} else {
		contents.Blob = data
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{contents}}, nil
}

// parseFileURI extracts ids from seekhost://indices/{indexId}/files/{documentId}.
func parseFileURI(uri string) (indexID, docID uint64, ok bool) {
	rest, found := strings.CutPrefix(uri, uriScheme+"indices/")
	if !found {
		return 0, 0, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "files" {
		return 0, 0, false
	}
	indexID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	docID, err = strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return indexID, docID, true
}

// mimeType tells PDFs from text. Anything else is served as bytes.
func mimeType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return "application/pdf"
	case utf8.Valid(data):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
