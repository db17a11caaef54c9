package notify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageWritesAuditLine(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	body, err := json.Marshal(PushMessage{
		Kind:   KindUser,
		UserID: 42,
		Title:  "Giliran Anda! 🔔",
		Body:   "Nomor antrean #7 dipanggil.",
		SentAt: "2025-09-01T08:00:00Z",
	})
	require.NoError(t, err)
	require.NoError(t, handleMessage(body))

	data, err := os.ReadFile(filepath.Join(dir, "logs", "notifications.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "kind=user")
	assert.Contains(t, string(data), "target=user:42")
	assert.Contains(t, string(data), "#7")
}

func TestHandleMessageRejectsMalformedBody(t *testing.T) {
	assert.Error(t, handleMessage([]byte("{not json")))
}
