package persistence

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
)

func TestFilterQueryRoundTrip(t *testing.T) {
	in := attivita.Filter{UserID: "u1", From: "2026-10-01"}
	out, err := DecodeFilter(EncodeFilter(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestDecodeFilterRejectsBadInput(t *testing.T) {
	_, err := DecodeFilter(url.Values{})
	require.Error(t, err)

	_, err = DecodeFilter(url.Values{"user_id": {"u1"}, "from": {"01/10/2026"}})
	require.ErrorIs(t, err, attivita.ErrInvalidDate)

	_, err = DecodeFilter(url.Values{"user_id": {"u1"}, "from": {"2026-10-02"}, "to": {"2026-10-01"}})
	require.Error(t, err)
}
