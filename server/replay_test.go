package server

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker-go/measlog"
	"tracker-go/ukf"
)

func TestReplayFeedsIngestPath(t *testing.T) {
	s := newLoopbackServer(t)

	path := filepath.Join(t.TempDir(), "meas.log")
	w, err := measlog.NewWriter(path)
	require.NoError(t, err)

	measurements := []Measurement{
		{
			ObjectID: 1,
			Packet:   ukf.Packet{Sensor: ukf.SensorPosition, Values: []float64{2, 3}, TimestampUs: 0},
		},
		{
			ObjectID: 2,
			Packet:   ukf.Packet{Sensor: ukf.SensorRangeBearing, Values: []float64{10, 0, 0}, TimestampUs: 0},
		},
		{
			ObjectID: 1,
			Packet:   ukf.Packet{Sensor: ukf.SensorPosition, Values: []float64{2.1, 3.0}, TimestampUs: 50000},
		},
	}
	for _, m := range measurements {
		buf, err := EncodeMeasurement(m)
		require.NoError(t, err)
		require.NoError(t, w.WriteRecord(m.Packet.TimestampUs, buf))
	}
	require.NoError(t, w.Close())

	require.NoError(t, s.Replay(path, 0))

	tracks, ok := s.Tracks().([]*wsEstimate)
	require.True(t, ok)
	require.Len(t, tracks, 2)

	byID := map[uint32]*wsEstimate{}
	for _, tr := range tracks {
		byID[tr.ID] = tr
	}
	require.Contains(t, byID, uint32(1))
	require.Contains(t, byID, uint32(2))
	assert.Equal(t, int64(50000), byID[1].TS, "replayed records run the full cycle")
	assert.InDelta(t, 10.0, byID[2].X, 1e-9)
}

func TestReplayMissingLog(t *testing.T) {
	s := newLoopbackServer(t)
	err := s.Replay(filepath.Join(t.TempDir(), "absent.log"), 0)
	assert.Error(t, err)
}
