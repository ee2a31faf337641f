package shared

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogAuditorWritesRecord(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewSlogAuditor(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := auditor.Record(context.Background(), AuditLog{Action: "po.complete", Entity: "purchase_order", EntityID: "7", Meta: map[string]any{"voucher_id": 3}})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"action":"po.complete"`)
	require.Contains(t, buf.String(), `"entity_id":"7"`)
}

func TestSlogAuditorRejectsIncompleteRecord(t *testing.T) {
	auditor := NewSlogAuditor(nil)
	require.Error(t, auditor.Record(context.Background(), AuditLog{Action: "x"}))
}
