package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		size  string
		unit  string
	}{
		{512 * KB, "512", UnitKB},
		{1536, "2", UnitKB},
		{MB, "1", UnitMB},
		{50 * MB, "50", UnitMB},
		{MB + MB/4, "1.3", UnitMB},
		{0, "0", UnitKB},
	}

	for _, tc := range tests {
		size, unit := FormatSize(tc.bytes)
		assert.Equal(t, tc.size, size, "bytes=%d", tc.bytes)
		assert.Equal(t, tc.unit, unit, "bytes=%d", tc.bytes)
	}
}

func TestSizeToBytes(t *testing.T) {
	assert.Equal(t, 512*KB, SizeToBytes("512", "KB"))
	assert.Equal(t, 50*MB, SizeToBytes("50", "MB"))
	assert.Equal(t, 2*MB, SizeToBytes("2", ""))
	assert.Equal(t, int64(0), SizeToBytes("abc", "MB"))
	assert.Equal(t, int64(0), SizeToBytes("", ""))
	assert.Equal(t, int64(0), SizeToBytes("-3", "MB"))
}
