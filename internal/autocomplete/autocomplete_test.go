package autocomplete

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

var registry = []Client{
	{ID: 1, Name: "Edilizia Rossi"},
	{ID: 2, Name: "Rossi"},
	{ID: 3, Name: "Società Rossini Impianti"},
	{ID: 4, Name: "Acme"},
	{ID: 5, Name: "Carrozzeria Bianchi"},
}

func names(clients []Client) []string {
	out := make([]string, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.Name)
	}
	return out
}

func TestFoldStripsAccentsAndCase(t *testing.T) {
	require.Equal(t, "societa edile", Fold("  Società--Edile "))
	require.Equal(t, "perche", Fold("PERCHÉ"))
}

func TestSuggestRanksExactPrefixWordSubstring(t *testing.T) {
	got := Suggest(registry, "rossi", 0)
	require.Equal(t, []string{"Rossi", "Edilizia Rossi", "Società Rossini Impianti"}, names(got))

	got = Suggest(registry, "ssi", 0)
	require.Equal(t, []string{"Rossi", "Edilizia Rossi", "Società Rossini Impianti"}, names(got))

	got = Suggest(registry, "SOCIETA", 1)
	require.Equal(t, []string{"Società Rossini Impianti"}, names(got))
}

func TestSuggestEmptyQueryListsAlphabetically(t *testing.T) {
	got := Suggest(registry, "", 2)
	require.Equal(t, []string{"Acme", "Carrozzeria Bianchi"}, names(got))
}

type stubSource struct {
	calls   int
	clients []Client
	err     error
}

func (s *stubSource) ListClients(context.Context) ([]Client, error) {
	s.calls++
	return s.clients, s.err
}

func TestCatalogCachesUntilTTL(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	src := &stubSource{clients: registry}
	cat := NewCatalog(src, WithTTL(time.Minute), WithClock(func() time.Time { return now }), WithLogger(log.New(io.Discard)))
	ctx := context.Background()

	_, err := cat.Suggest(ctx, "acme", 5)
	require.NoError(t, err)
	_, err = cat.Suggest(ctx, "rossi", 5)
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	src.err = errors.New("offline")
	clients, err := cat.Clients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, len(registry))
	require.Equal(t, 2, src.calls)

	client, ok, err := cat.Resolve(ctx, "acme")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(4), client.ID)
}

func TestCatalogFailsWithoutData(t *testing.T) {
	cat := NewCatalog(&stubSource{err: errors.New("offline")}, WithLogger(log.New(io.Discard)))
	_, err := cat.Clients(context.Background())
	require.Error(t, err)
}

func TestPickerNavigation(t *testing.T) {
	var p Picker
	p.Open(registry)
	require.True(t, p.IsOpen())

	p.Move(-1)
	c, ok := p.Highlighted()
	require.True(t, ok)
	require.Equal(t, "Carrozzeria Bianchi", c.Name)

	visible, idx := p.Visible(2)
	require.Len(t, visible, 2)
	require.Equal(t, 1, idx)
	require.Equal(t, "Carrozzeria Bianchi", visible[idx].Name)

	p.Move(1)
	visible, idx = p.Visible(2)
	require.Equal(t, 0, idx)
	require.Equal(t, "Edilizia Rossi", visible[0].Name)

	c, ok = p.Accept()
	require.True(t, ok)
	require.Equal(t, int64(1), c.ID)
	require.False(t, p.IsOpen())

	p.Open(nil)
	require.False(t, p.IsOpen())
	_, ok = p.Accept()
	require.False(t, ok)
}
