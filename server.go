package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gamma-omg/chatpdf-mcp/answer"
)

func NewChatPDFServer(reg *DocumentRegistry) *server.MCPServer {
	srv := server.NewMCPServer("ChatPDF", "0.1.0", server.WithToolCapabilities(false))

	addIngestTool(srv, reg)
	addAskTool(srv, reg)
	addListTool(srv, reg)
	addRemoveTool(srv, reg)

	return srv
}

func addIngestTool(srv *server.MCPServer, reg *DocumentRegistry) {
	tool := mcp.NewTool("ingest_document",
		mcp.WithDescription("Extracts text, tables and form fields from a document and indexes it for question answering"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the document file"),
		))

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		summary, err := reg.IngestFile(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(summary)
	})
}

func addAskTool(srv *server.MCPServer, reg *DocumentRegistry) {
	tool := mcp.NewTool("ask_question",
		mcp.WithDescription("Answers a question about an ingested document, citing page numbers"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Identifier returned by ingest_document"),
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
		mcp.WithString("history",
			mcp.Description("Optional conversation history as a JSON array of {role, content} messages"),
		))

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID, err := request.RequireString("document_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		question, err := request.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var history []answer.Message
		if raw := request.GetString("history", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &history); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid history: %s", err)), nil
			}
		}

		res, err := reg.AnswerQuestion(ctx, docID, question, history)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(res)
	})
}

func addListTool(srv *server.MCPServer, reg *DocumentRegistry) {
	tool := mcp.NewTool("list_documents",
		mcp.WithDescription("Lists all ingested documents"))

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(reg.ListDocuments())
	})
}

func addRemoveTool(srv *server.MCPServer, reg *DocumentRegistry) {
	tool := mcp.NewTool("remove_document",
		mcp.WithDescription("Removes an ingested document and its vector collection"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Identifier returned by ingest_document"),
		))

	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID, err := request.RequireString("document_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		removed := reg.RemoveDocument(ctx, docID)
		return jsonResult(struct {
			DocumentID string `json:"document_id"`
			Removed    bool   `json:"removed"`
		}{DocumentID: docID, Removed: removed})
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(raw)), nil
}
