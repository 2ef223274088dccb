package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestXLSXRenderRoundTrip(t *testing.T) {
	exporter := NewXLSXExporter()
	data := Dataset{
		Headers: []string{"cycle", "entry_title", "entry_status"},
		Rows: []map[string]string{
			{"cycle": "1", "entry_title": "Topic A", "entry_status": "head_approved"},
			{"cycle": "1", "entry_title": "Topic B", "entry_status": "moderator_rejected"},
		},
	}

	payload, err := exporter.Render(data, "Proposals")
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows("Proposals")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"cycle", "entry_title", "entry_status"}, rows[0])
	assert.Equal(t, "Topic A", rows[1][1])
	assert.Equal(t, "moderator_rejected", rows[2][2])
}

func TestXLSXRenderRequiresHeaders(t *testing.T) {
	exporter := NewXLSXExporter()
	_, err := exporter.Render(Dataset{}, "Proposals")
	require.Error(t, err)
}
