package llm_client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiContents(t *testing.T) {
	system, contents := geminiContents([]Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "facts"},
		{Role: "assistant", Content: "which court?"},
		{Role: "user", Content: "RTC"},
	})

	require.NotNil(t, system)
	require.Len(t, system.Parts, 1)
	assert.Equal(t, "be brief", system.Parts[0].Text)

	require.Len(t, contents, 3)
	assert.Equal(t, "user", string(contents[0].Role))
	assert.Equal(t, "model", string(contents[1].Role))
	assert.Equal(t, "which court?", contents[1].Parts[0].Text)
	assert.Equal(t, "user", string(contents[2].Role))
}

func TestGeminiContents_Empty(t *testing.T) {
	system, contents := geminiContents([]Message{{Role: "system", Content: "only instructions"}})

	require.NotNil(t, system)
	require.Len(t, contents, 1)
	assert.Equal(t, "user", string(contents[0].Role))
	assert.Equal(t, "Begin.", contents[0].Parts[0].Text)

	system, _ = geminiContents(nil)
	assert.Nil(t, system)
}
