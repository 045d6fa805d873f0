package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"lawgpt/internal/ledger"
	"lawgpt/internal/pipeline"
)

const maxStatusLength = 160

var (
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	phaseStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	retryStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	labelStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
)

// FormatEvent renders a session event as one terminal line. The final brief
// and the user's own messages render as "".
func FormatEvent(e pipeline.Event) string {
	switch e.Kind {
	case pipeline.EventStatus:
		return statusStyle.Render(truncate(e.Text))
	case pipeline.EventPhase:
		return phaseStyle.Render(fmt.Sprintf("[%s] %s", e.SessionID, PhaseLabel(e.Phase)))
	case pipeline.EventRetry:
		return retryStyle.Render(truncate(e.Text))
	case pipeline.EventError:
		return errorStyle.Render("Error: " + e.Text)
	case pipeline.EventMessage:
		if e.Message == nil || e.Message.IsFinalHTML || e.Message.Role != ledger.RoleAssistant {
			return ""
		}
		return labelStyle.Render("LawGPT: ") + assistantStyle.Render(e.Message.Content)
	}
	return ""
}

func PhaseLabel(p pipeline.Phase) string {
	switch p {
	case pipeline.PhaseIntake:
		return "Intake"
	case pipeline.PhaseStrategy:
		return "Strategy"
	case pipeline.PhaseSummarizer:
		return "Requirements summary"
	case pipeline.PhaseResearch:
		return "Research"
	case pipeline.PhaseSynthesis:
		return "Synthesis"
	case pipeline.PhaseStyling:
		return "Styling"
	case pipeline.PhaseIdle:
		return "Done"
	}
	return string(p)
}

func FormatState(st pipeline.State) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Phase: %s", PhaseLabel(st.Phase)))
	if st.Phase == pipeline.PhaseResearch {
		sb.WriteString(fmt.Sprintf(" (%s, task %d/%d)", st.SubPhase, st.TaskIndex+1, len(st.Tasks)))
	}
	sb.WriteString("\n")
	if st.Status != "" {
		sb.WriteString("Status: " + st.Status + "\n")
	}
	for i, t := range st.Tasks {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, t))
	}
	if st.Err != "" {
		sb.WriteString(errorStyle.Render("Error: "+st.Err) + "\n")
	}
	return sb.String()
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) > maxStatusLength {
		return string(r[:maxStatusLength]) + "..."
	}
	return s
}
