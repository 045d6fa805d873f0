package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed() Message {
	return Message{Role: RoleAssistant, Content: "Hello!", DisplayInChat: true}
}

func TestAppendAndVisible(t *testing.T) {
	l := New(seed())
	require.NoError(t, l.Append(Message{Role: RoleUser, Content: "question", DisplayInChat: true}))
	require.NoError(t, l.Append(Message{Role: RoleUser, Content: "Proceed with strategy formulation."}))

	assert.Equal(t, 3, l.Len())
	visible := l.Visible()
	require.Len(t, visible, 2)
	assert.Equal(t, "question", visible[1].Content)
}

func TestSnapshotIsNotTornByLaterWrites(t *testing.T) {
	l := New(seed())
	require.NoError(t, l.Append(Message{Role: RoleAssistant, Content: "findings", NeedsValidation: true}))

	before := l.Snapshot()
	require.NoError(t, l.Resolve(StatusCorrected, "corrected findings"))
	require.NoError(t, l.Append(Message{Role: RoleUser, Content: "next"}))

	assert.Len(t, before, 2)
	assert.Equal(t, "findings", before[1].Content)
	assert.True(t, before[1].NeedsValidation)

	after := l.Snapshot()
	assert.Len(t, after, 3)
	assert.Equal(t, "corrected findings", after[1].Content)
}

func TestAtMostOnePending(t *testing.T) {
	l := New(seed())
	require.NoError(t, l.Append(Message{Role: RoleAssistant, Content: "first", NeedsValidation: true}))

	err := l.Append(Message{Role: RoleAssistant, Content: "second", NeedsValidation: true})
	assert.ErrorIs(t, err, ErrPendingValidation)
	assert.Equal(t, 2, l.Len())
}

func TestResolveReplacesInPlace(t *testing.T) {
	l := New(seed())
	require.NoError(t, l.Append(Message{Role: RoleAssistant, Content: "raw", NeedsValidation: true}))
	require.NoError(t, l.Append(Message{Role: RoleUser, Content: "later"}))

	require.NoError(t, l.Resolve(StatusVerified, "clean"))

	msgs := l.Snapshot()
	require.Len(t, msgs, 3, "resolution must not insert a duplicate")
	assert.Equal(t, "clean", msgs[1].Content)
	assert.False(t, msgs[1].NeedsValidation)
	assert.Equal(t, StatusVerified, msgs[1].ValidationStatus)

	_, ok := l.Pending()
	assert.False(t, ok)
}

func TestSkipKeepsContent(t *testing.T) {
	l := New(seed())
	require.NoError(t, l.Append(Message{Role: RoleAssistant, Content: "raw findings", NeedsValidation: true}))

	pending, ok := l.Pending()
	require.True(t, ok)
	assert.Equal(t, "raw findings", pending.Content)

	require.NoError(t, l.Skip())
	msgs := l.Snapshot()
	assert.Equal(t, "raw findings", msgs[1].Content)
	assert.Equal(t, StatusUnverified, msgs[1].ValidationStatus)
	assert.False(t, msgs[1].NeedsValidation)

	assert.ErrorIs(t, l.Skip(), ErrNoPending)
	assert.ErrorIs(t, l.Resolve(StatusVerified, "x"), ErrNoPending)
}

func TestReset(t *testing.T) {
	l := New(seed())
	require.NoError(t, l.Append(Message{Role: RoleUser, Content: "q"}))
	require.NoError(t, l.Append(Message{Role: RoleAssistant, Content: "p", NeedsValidation: true}))

	l.Reset(seed())

	msgs := l.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, seed(), msgs[0])
	_, ok := l.Pending()
	assert.False(t, ok)
}
