package telemetry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeVideoFrameShapes(t *testing.T) {
	frame, err := DecodeVideoFrame([]byte(`"aGVsbG8="`))
	require.NoError(t, err)
	require.Equal(t, "aGVsbG8=", frame.Frame)

	frame, err = DecodeVideoFrame([]byte(`{"frame":"d29ybGQ="}`))
	require.NoError(t, err)
	require.Equal(t, "d29ybGQ=", frame.Frame)
}

func TestDecodeVideoFrameRejectsEmpty(t *testing.T) {
	for _, payload := range []string{`""`, `{}`, `{"frame":""}`, `42`} {
		_, err := DecodeVideoFrame([]byte(payload))
		require.Error(t, err, payload)
	}
}

func TestSnapshotOptionalFields(t *testing.T) {
	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"battery":90,"speed":{"x":5}}`), &snap))

	require.Equal(t, 90, *snap.Battery)
	require.Nil(t, snap.Temperature)
	require.Nil(t, snap.Height)
	require.Nil(t, snap.FlightTime)
	require.NotNil(t, snap.Speed)
	require.Equal(t, 5, *snap.Speed.X)
	require.Nil(t, snap.Speed.Y)
}
