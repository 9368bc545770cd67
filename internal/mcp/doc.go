// Package mcp exposes docqa over the Model Context Protocol (MCP).
//
// The server speaks JSON-RPC 2.0 on stdio and registers five tools:
//   - ingest_chunks: index extracted chunks or raw text into a scope
//   - search_documents: ranked retrieval with topic, document and focus handling
//   - ask: a full chat turn (retrieval, rerank, answer) within a session
//   - list_collections: the vector collections and their configuration
//   - get_status: store statistics, health and ingestion state
//
// # Basic Usage
//
//	docqa mcp
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {
//	    "query": "¿Qué dice el tema 2 sobre las becas?",
//	    "limit": 5,
//	    "mode": "hybrid"
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "rank": 1,
//	      "score": 0.87,
//	      "document": "reglamento.pdf",
//	      "page_number": 4,
//	      "tema": "2",
//	      "content": "..."
//	    }
//	  ],
//	  "filters": {"tema": "2"}
//	}
//
// # Error Handling
//
// Tool failures are returned as MCPError values:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (store, embedding provider)
//   - -32002: Ingestion into the same scope already running
//   - -32004: Empty query or message
package mcp
