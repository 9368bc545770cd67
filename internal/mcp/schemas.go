package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var modeEnum = []string{"semantic", "hyde", "hybrid", "hybrid+hyde"}

// ingestChunksTool returns the tool definition for ingest_chunks
func ingestChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_chunks",
		Description: "Index document chunks (or raw text) so they can be searched and cited",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Document name recorded on every fragment (e.g. reglamento.pdf)",
				},
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Target scope; defaults to the global collection",
				},
				"chunks": map[string]interface{}{
					"type":        "array",
					"description": "Extracted chunks with their page or group number",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"text_content":    map[string]interface{}{"type": "string"},
							"page_number":     map[string]interface{}{"type": "integer"},
							"source_document": map[string]interface{}{"type": "string"},
						},
						"required": []string{"text_content"},
					},
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Plain text or Markdown, split into blocks at headings",
				},
			},
			Required: []string{"document_id"},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Retrieve the fragments most relevant to a question, honoring topic and document references",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Question or keywords",
				},
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Scope to search; defaults to the global collection",
				},
				"document": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to this document",
				},
				"focus": map[string]interface{}{
					"type":        "string",
					"description": "Document used when the query names neither a topic nor a document",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     6,
					"minimum":     1,
					"maximum":     100,
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Retrieval strategy",
					"enum":        modeEnum,
				},
			},
			Required: []string{"query"},
		},
	}
}

// askTool returns the tool definition for ask
func askTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed documents within a chat session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "The user's question",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Existing session; omitted starts a new one",
				},
				"document": map[string]interface{}{
					"type":        "string",
					"description": "Explicitly selected document",
				},
			},
			Required: []string{"message"},
		},
	}
}

func listCollectionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_collections",
		Description: "List vector collections and their configuration",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report store statistics, health and whether an ingestion is running",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Scope to check for a running ingestion",
				},
			},
		},
	}
}
