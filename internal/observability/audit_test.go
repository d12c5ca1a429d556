package observability

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger(t *testing.T) {
	t.Run("should write turn events as JSON lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.jsonl")
		require.NoError(t, InitAuditLogger(path))
		defer GetAuditLogger().Close()

		RecordTurnAudit(context.Background(), "relay-1", "Alice", "success", map[string]interface{}{"round": 0})
		RecordRelayAudit(context.Background(), "relay-1", "relay_complete", "success", nil)

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)

		var first map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
		assert.Equal(t, "turn", first["action"])
		assert.Equal(t, "Alice", first["actor"])
		assert.Equal(t, "relay-1", first["relay_id"])
	})
}
