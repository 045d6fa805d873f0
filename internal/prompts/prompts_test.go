package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()

	assert.Equal(t, "Hello! I am LawGPT, your AI legal research assistant. Tell me what you need regarding Philippine law.", s.Greeting)

	completion := map[string]string{
		"intake":     `[intake_status: "done"]`,
		"strategy":   `[tasks: [`,
		"summarizer": `[summary_status: "finalized"]`,
		"research":   `[action: "web_search", query:`,
		"validator":  `[validation_status: "verified"]`,
		"synthesis":  `[synthesis_status: "done"]`,
		"styling":    `[render_status: "final"]`,
	}
	for phase, marker := range completion {
		assert.Contains(t, s.ForPhase(phase), marker, phase)
	}
	assert.NotEmpty(t, s.BaseChat)
	assert.Equal(t, "you are lawGPT, helping lawyers", s.MiniChat)
	assert.Empty(t, s.ForPhase("idle"))
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("intake: |\n  Custom intake.\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Custom intake.", s.Intake)
	assert.Equal(t, Default().Strategy, s.Strategy)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("intake: [unterminated"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}
