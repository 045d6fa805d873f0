// Package server exposes research sessions as MCP tools over stdio.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"lawgpt/internal/quickchat"
	"lawgpt/internal/store"
	"lawgpt/internal/supervisor"
)

const Version = "0.3.0"

// New builds the MCP server. archive may be nil, in which case the history
// tool is not registered.
func New(manager *supervisor.Manager, chat *quickchat.Service, conv *quickchat.Conversation, archive *store.Store) *server.MCPServer {
	s := server.NewMCPServer(
		"lawgpt",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	// --- Research sessions ---
	start := NewStartTool(manager)
	s.AddTool(start.Definition(), start.Handle)

	submit := NewSubmitTool(manager)
	s.AddTool(submit.Definition(), submit.Handle)

	state := NewStateTool(manager)
	s.AddTool(state.Definition(), state.Handle)

	reset := NewResetTool(manager)
	s.AddTool(reset.Definition(), reset.Handle)

	list := NewListTool(manager)
	s.AddTool(list.Definition(), list.Handle)

	// --- Utilities ---
	expand := NewExpandCitationsTool()
	s.AddTool(expand.Definition(), expand.Handle)

	ask := NewAskTool(chat)
	s.AddTool(ask.Definition(), ask.Handle)

	chatTool := NewChatTool(conv)
	s.AddTool(chatTool.Definition(), chatTool.Handle)

	if archive != nil {
		history := NewHistoryTool(archive)
		s.AddTool(history.Definition(), history.Handle)
	}
	return s
}

// ServeStdio blocks serving s on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `LawGPT researches Philippine legal questions in stages.
Call research_start, then research_submit with the question. If the reply asks a
follow-up question, answer it with research_submit on the same session. When the
phase is "idle" and brief is set, the research is complete. Citations in the brief
are already expanded; use citations_expand for other text. research_list shows the
open sessions. lawgpt_ask answers one question; lawgpt_chat keeps a short
multi-turn conversation.`
