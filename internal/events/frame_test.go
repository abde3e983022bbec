package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	value := Frame(42, []byte(`{"activity_id":7}`))
	require.Equal(t, byte(0), value[0])

	id, payload, err := Unframe(value)
	require.NoError(t, err)
	require.Equal(t, 42, id)
	require.JSONEq(t, `{"activity_id":7}`, string(payload))

	payload[0] = 'x'
	require.Equal(t, byte('{'), value[5])
}

func TestUnframeRejectsMalformed(t *testing.T) {
	_, _, err := Unframe([]byte{0, 1})
	require.ErrorIs(t, err, ErrShortFrame)

	bad := Frame(1, nil)
	bad[0] = 9
	_, _, err = Unframe(bad)
	require.ErrorIs(t, err, ErrMagicByte)
}
