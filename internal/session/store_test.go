package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentplane/core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAppendRecoverRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	header := models.SessionHeader{SessionID: "s1", AgentID: "a1", CreatedAt: time.Now()}
	require.NoError(t, store.Create(header))

	require.NoError(t, store.Append("a1", "s1", models.SessionRecord{
		Kind:      models.RecordMessage,
		Message:   &models.Message{Role: models.RoleUser, Content: "hi"},
		Timestamp: time.Now(),
	}))
	require.NoError(t, store.Append("a1", "s1", models.SessionRecord{
		Kind:      models.RecordMessage,
		Message:   &models.Message{Role: models.RoleAssistant, Content: "hello"},
		Timestamp: time.Now(),
	}))

	recovered, err := store.Recover("a1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", recovered.Header.SessionID)
	require.Len(t, recovered.Records, 2)
	assert.Equal(t, "hi", recovered.Records[0].Message.Content)
	assert.Equal(t, "hello", recovered.Records[1].Message.Content)
}

func TestRecoverCorruptSessionNamesIt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a1"), 0o755))
	path := filepath.Join(dir, "a1", "s1.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json\n"), 0o644))

	store := NewStore(dir)
	_, err := store.Recover("a1", "s1")
	require.Error(t, err)
	var corrupt *models.SessionCorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "s1", corrupt.SessionID)
}
