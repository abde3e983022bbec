package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
)

type stubLister struct {
	mu      sync.Mutex
	records []attivita.Record
	err     error
	calls   int
	bypass  []bool
}

func (s *stubLister) ListActivities(_ context.Context, _ attivita.Filter, bypass bool) ([]attivita.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.bypass = append(s.bypass, bypass)
	if s.err != nil {
		return nil, s.err
	}
	return append([]attivita.Record(nil), s.records...), nil
}

func TestLoadReplacesRowsDedupesAndBumpsVersion(t *testing.T) {
	lister := &stubLister{records: []attivita.Record{
		{ID: 1, Date: "2026-10-15", ClientName: "Acme", ActivityKind: attivita.KindSopralluogo, KM: 12},
		{ID: 1, Date: "2026-10-15", ClientName: "Acme duplicate"},
		{ID: 2, Date: "2026-10-16", KM: 3.5},
	}}
	s := New(lister)

	rows, version, err := s.Load(context.Background(), attivita.Filter{UserID: "u1"}, true)
	require.NoError(t, err)
	require.EqualValues(t, 1, version)
	require.Equal(t, version, s.Version())
	require.Len(t, rows, 2)
	require.Equal(t, int64(2), rows[0].ID, "newest date first")
	require.Equal(t, "3.5", rows[0].KM)
	require.Equal(t, "Acme", rows[1].ClientName)
	require.Equal(t, rows, s.Rows())
}

func TestLoadServesCacheOnlyWhenNothingChanged(t *testing.T) {
	lister := &stubLister{records: []attivita.Record{{ID: 1, Date: "2026-10-15"}}}
	s := New(lister)
	ctx := context.Background()
	filter := attivita.Filter{UserID: "u1"}

	_, _, err := s.Load(ctx, filter, false)
	require.NoError(t, err)
	_, _, err = s.Load(ctx, filter, false)
	require.NoError(t, err)
	require.Equal(t, 1, lister.calls)

	s.NotifyChanged()
	_, _, err = s.Load(ctx, filter, false)
	require.NoError(t, err)
	require.Equal(t, 2, lister.calls)

	_, _, err = s.Load(ctx, filter, true)
	require.NoError(t, err)
	require.Equal(t, 3, lister.calls)
	require.Equal(t, []bool{false, false, true}, lister.bypass)
}

func TestLoadFailureKeepsCacheAndVersion(t *testing.T) {
	lister := &stubLister{records: []attivita.Record{{ID: 7, Date: "2026-10-15"}}}
	s := New(lister)
	ctx := context.Background()

	_, _, err := s.Load(ctx, attivita.Filter{}, true)
	require.NoError(t, err)

	lister.err = errors.New("offline")
	_, version, err := s.Load(ctx, attivita.Filter{}, true)
	require.Error(t, err)
	require.EqualValues(t, 1, version)
	require.Len(t, s.Rows(), 1)
	require.False(t, s.Loading())
}

func TestNotifyChangedReachesEverySubscriber(t *testing.T) {
	s := New(&stubLister{})
	a, cancelA := s.Subscribe()
	defer cancelA()
	b, cancelB := s.Subscribe()

	require.EqualValues(t, 1, s.NotifyChanged())
	require.EqualValues(t, 1, receive(t, a))
	require.EqualValues(t, 1, receive(t, b))

	cancelB()
	cancelB()
	s.NotifyChanged()
	require.EqualValues(t, 2, receive(t, a))
	select {
	case v := <-b:
		t.Fatalf("cancelled subscriber received %d", v)
	default:
	}
}

func TestSlowSubscriberSeesLatestVersion(t *testing.T) {
	s := New(&stubLister{})
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		s.NotifyChanged()
	}
	require.EqualValues(t, 5, receive(t, ch))
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra notification %d", v)
	default:
	}
}

func TestConcurrentNotifyIsMonotonic(t *testing.T) {
	s := New(&stubLister{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NotifyChanged()
		}()
	}
	wg.Wait()
	require.EqualValues(t, 50, s.Version())
}

func receive(t *testing.T, ch <-chan uint64) uint64 {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("no notification")
		return 0
	}
}
