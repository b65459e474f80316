package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemKindUnmarshalLegacyExtension(t *testing.T) {
	payload := `[{"id":"a","title":"notes.pdf","type":"pdf","size":"2","size_unit":"MB"},
		{"id":"b","title":"Week 1","type":"Folder"}]`

	var items []StorageItem
	require.NoError(t, json.Unmarshal([]byte(payload), &items))
	require.Len(t, items, 2)

	assert.Equal(t, KindFile, items[0].Kind)
	assert.Equal(t, KindFolder, items[1].Kind)
	assert.True(t, items[1].IsFolder())
}

func TestUsageBytes(t *testing.T) {
	exact := StorageItem{Kind: KindFile, Size: "1", SizeUnit: UnitMB, SizeBytes: 1_100_000}
	legacy := StorageItem{Kind: KindFile, Size: "300", SizeUnit: UnitKB}
	folder := StorageItem{Kind: KindFolder, Size: "9", SizeUnit: UnitMB}

	assert.Equal(t, int64(1_100_000), exact.UsageBytes())
	assert.Equal(t, 300*KB, legacy.UsageBytes())
	assert.Equal(t, int64(0), folder.UsageBytes())
}

func TestSignatureIsCaseInsensitiveAndScopedToParent(t *testing.T) {
	a := StorageItem{ParentID: "p1", Title: "Report.PDF", Size: "2", SizeUnit: UnitMB}
	b := StorageItem{ParentID: "p1", Title: "report.pdf", Size: "2", SizeUnit: UnitMB}
	c := StorageItem{ParentID: "p2", Title: "report.pdf", Size: "2", SizeUnit: UnitMB}

	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())
}

func TestParseTaskStatus(t *testing.T) {
	status, ok := ParseTaskStatus("Uploading")
	assert.True(t, ok)
	assert.Equal(t, TaskUploading, status)
	assert.False(t, status.Terminal())

	_, ok = ParseTaskStatus("paused")
	assert.False(t, ok)
	assert.True(t, TaskError.Terminal())
}
