// Package mcp provides an MCP (Model Context Protocol) server adapter for docqa.
// It lets AI assistants search and question the ingested PDF documents.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
