package transfer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FireNirva/quants-fleet/pkg/transfer"
)

func TestParseStatsPrefersTotalTransferredFileSize(t *testing.T) {
	output := `
Number of files: 120
Number of regular files transferred: 45
Total transferred file size: 1,048,576 bytes
sent 1,050,000 bytes  received 840 bytes  70,056.00 bytes/sec
`
	stats := transfer.ParseStats(output)
	require.Equal(t, 45, stats.FilesTransferred)
	require.Equal(t, int64(1048576), stats.BytesTransferred)
}

func TestParseStatsFallsBackToSentBytes(t *testing.T) {
	output := `sent 2,048 bytes  received 100 bytes  4,296.00 bytes/sec`
	stats := transfer.ParseStats(output)
	require.Equal(t, int64(2048), stats.BytesTransferred)
	require.Equal(t, 0, stats.FilesTransferred)
}
