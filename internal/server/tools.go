package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"lawgpt/internal/citation"
	"lawgpt/internal/display"
	"lawgpt/internal/ledger"
	"lawgpt/internal/pipeline"
	"lawgpt/internal/quickchat"
	"lawgpt/internal/store"
	"lawgpt/internal/supervisor"
)

// sessionView is the JSON shape returned by the research tools.
type sessionView struct {
	SessionID string              `json:"session_id"`
	Phase     pipeline.Phase      `json:"phase"`
	SubPhase  pipeline.SubPhase   `json:"sub_phase,omitempty"`
	Status    string              `json:"status,omitempty"`
	Tasks     []string            `json:"tasks,omitempty"`
	Fragments []pipeline.Fragment `json:"fragments,omitempty"`
	Brief     string              `json:"brief,omitempty"`
	Citations []citation.Citation `json:"citations,omitempty"`
	Error     string              `json:"error,omitempty"`
	Messages  []chatLine          `json:"messages,omitempty"`
}

type chatLine struct {
	Role    ledger.Role `json:"role"`
	Content string      `json:"content"`
}

func viewOf(s *pipeline.Session, visible []ledger.Message) sessionView {
	st := s.State()
	v := sessionView{
		SessionID: s.ID,
		Phase:     st.Phase,
		SubPhase:  st.SubPhase,
		Status:    st.Status,
		Tasks:     st.Tasks,
		Fragments: st.Fragments,
		Error:     st.Err,
	}
	if st.FinalHTML != "" {
		v.Brief = display.RenderBrief(st.FinalHTML)
		v.Citations = citation.Find(st.FinalHTML)
	}
	for _, m := range visible {
		if m.IsFinalHTML {
			continue
		}
		v.Messages = append(v.Messages, chatLine{Role: m.Role, Content: m.Content})
	}
	return v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// ─── StartTool ──────────────────────────────────────────────────────────────

// StartTool handles the research_start MCP tool.
type StartTool struct {
	manager *supervisor.Manager
}

func NewStartTool(m *supervisor.Manager) *StartTool {
	return &StartTool{manager: m}
}

func (t *StartTool) Definition() mcp.Tool {
	return mcp.NewTool("research_start",
		mcp.WithDescription(
			"Open a new legal research session. Returns the session id and the greeting. "+
				"Send the legal question with research_submit.",
		),
	)
}

func (t *StartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s := t.manager.Start()
	return jsonResult(viewOf(s, s.Visible()))
}

// ─── SubmitTool ─────────────────────────────────────────────────────────────

// SubmitTool handles the research_submit MCP tool.
type SubmitTool struct {
	manager *supervisor.Manager
}

func NewSubmitTool(m *supervisor.Manager) *SubmitTool {
	return &SubmitTool{manager: m}
}

func (t *SubmitTool) Definition() mcp.Tool {
	return mcp.NewTool("research_submit",
		mcp.WithDescription(
			"Send a user message to a research session and run the pipeline until it needs "+
				"more input or produces the final brief. Returns the new visible messages.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id returned by research_start"),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user's question or answer to a follow-up"),
		),
	)
}

func (t *SubmitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	message := req.GetString("message", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	if message == "" {
		return mcp.NewToolResultError("'message' is required"), nil
	}

	s, err := t.manager.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	before := len(s.Visible())

	_, err = t.manager.Submit(ctx, id, message)
	switch {
	case errors.Is(err, pipeline.ErrSessionBusy), errors.Is(err, pipeline.ErrSessionFinished):
		return mcp.NewToolResultError(fmt.Sprintf("cannot submit: %v", err)), nil
	case err != nil && ctx.Err() != nil:
		return mcp.NewToolResultError(fmt.Sprintf("cancelled: %v", err)), nil
	}

	// Pipeline failures are already in the session state.
	visible := s.Visible()
	if before > len(visible) {
		before = 0
	}
	return jsonResult(viewOf(s, visible[before:]))
}

// ─── StateTool ──────────────────────────────────────────────────────────────

// StateTool handles the research_state MCP tool.
type StateTool struct {
	manager *supervisor.Manager
}

func NewStateTool(m *supervisor.Manager) *StateTool {
	return &StateTool{manager: m}
}

func (t *StateTool) Definition() mcp.Tool {
	return mcp.NewTool("research_state",
		mcp.WithDescription("Report the phase, tasks, fragments and full visible transcript of a session."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id returned by research_start"),
		),
		mcp.WithBoolean("include_hidden",
			mcp.Description("Also return the hidden turns exchanged with the model (default: false)"),
		),
	)
}

func (t *StateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	s, err := t.manager.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetBool("include_hidden", false) {
		return jsonResult(viewOf(s, s.Messages()))
	}
	return jsonResult(viewOf(s, s.Visible()))
}

// ─── ListTool ───────────────────────────────────────────────────────────────

// ListTool handles the research_list MCP tool.
type ListTool struct {
	manager *supervisor.Manager
}

func NewListTool(m *supervisor.Manager) *ListTool {
	return &ListTool{manager: m}
}

type sessionSummary struct {
	SessionID string         `json:"session_id"`
	Phase     pipeline.Phase `json:"phase"`
	Status    string         `json:"status,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("research_list",
		mcp.WithDescription("List the open research sessions with their phase and status."),
	)
}

func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := []sessionSummary{}
	for _, id := range t.manager.IDs() {
		s, err := t.manager.Get(id)
		if err != nil {
			// closed since IDs was read
			continue
		}
		st := s.State()
		out = append(out, sessionSummary{SessionID: id, Phase: st.Phase, Status: st.Status, Error: st.Err})
	}
	return jsonResult(out)
}

// ─── ResetTool ──────────────────────────────────────────────────────────────

// ResetTool handles the research_reset MCP tool.
type ResetTool struct {
	manager *supervisor.Manager
}

func NewResetTool(m *supervisor.Manager) *ResetTool {
	return &ResetTool{manager: m}
}

func (t *ResetTool) Definition() mcp.Tool {
	return mcp.NewTool("research_reset",
		mcp.WithDescription("Discard a session's conversation and start over from the greeting."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id returned by research_start"),
		),
	)
}

func (t *ResetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	if err := t.manager.Reset(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s, err := t.manager.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(viewOf(s, s.Visible()))
}

// ─── ExpandCitationsTool ────────────────────────────────────────────────────

// ExpandCitationsTool handles the citations_expand MCP tool.
type ExpandCitationsTool struct{}

func NewExpandCitationsTool() *ExpandCitationsTool {
	return &ExpandCitationsTool{}
}

func (t *ExpandCitationsTool) Definition() mcp.Tool {
	return mcp.NewTool("citations_expand",
		mcp.WithDescription(
			"Replace [[CITATION: G.R. No. | Petitioner | Date | Division | Syllabus]] markers "+
				"with HTML citation cards and drop leftover [key: value] directives.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Brief text containing citation markers"),
		),
	)
}

func (t *ExpandCitationsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}
	return mcp.NewToolResultText(display.RenderBrief(text)), nil
}

// ─── AskTool ────────────────────────────────────────────────────────────────

// AskTool handles the lawgpt_ask MCP tool.
type AskTool struct {
	chat *quickchat.Service
}

func NewAskTool(chat *quickchat.Service) *AskTool {
	return &AskTool{chat: chat}
}

func (t *AskTool) Definition() mcp.Tool {
	return mcp.NewTool("lawgpt_ask",
		mcp.WithDescription("Answer a single legal question directly, without the research pipeline."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The legal question"),
		),
	)
}

func (t *AskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := req.GetString("question", "")
	if question == "" {
		return mcp.NewToolResultError("'question' is required"), nil
	}
	answer, err := t.chat.Ask(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(answer), nil
}

// ─── ChatTool ───────────────────────────────────────────────────────────────

// ChatTool handles the lawgpt_chat MCP tool.
type ChatTool struct {
	conv *quickchat.Conversation
}

func NewChatTool(conv *quickchat.Conversation) *ChatTool {
	return &ChatTool{conv: conv}
}

func (t *ChatTool) Definition() mcp.Tool {
	return mcp.NewTool("lawgpt_chat",
		mcp.WithDescription(
			"Continue a short multi-turn chat with LawGPT outside the research pipeline. "+
				"Earlier turns of the chat are sent along with every message.",
		),
		mcp.WithString("message",
			mcp.Description("The next user message"),
		),
		mcp.WithBoolean("reset",
			mcp.Description("Forget earlier turns before sending (default: false)"),
		),
	)
}

func (t *ChatTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := req.GetString("message", "")
	reset := req.GetBool("reset", false)
	if reset {
		t.conv.Reset()
	}
	if message == "" {
		if reset {
			return mcp.NewToolResultText("Chat cleared."), nil
		}
		return mcp.NewToolResultError("'message' is required"), nil
	}
	reply, err := t.conv.Chat(ctx, message)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(reply), nil
}

// ─── HistoryTool ────────────────────────────────────────────────────────────

// HistoryTool handles the research_history MCP tool.
type HistoryTool struct {
	store *store.Store
}

func NewHistoryTool(s *store.Store) *HistoryTool {
	return &HistoryTool{store: s}
}

func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("research_history",
		mcp.WithDescription("List archived research runs, most recent first, or fetch one by session id."),
		mcp.WithString("session_id",
			mcp.Description("Return this run in full instead of the listing"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum runs to list (default: 20)"),
		),
	)
}

func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("session_id", ""); id != "" {
		run, err := t.store.GetRun(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(run)
	}
	runs, err := t.store.ListRuns(ctx, intArg(req, "limit", 20))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	return jsonResult(runs)
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
