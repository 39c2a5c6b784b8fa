package kb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kbV1 = `[FAP_CLIGNOTANT]
Voyant clignotant : filtre saturé.

[NETTOYAGE]
Nettoyage haute pression.
`

const kbV2 = kbV1 + `
[HORAIRES]
Ouvert du lundi au samedi.
`

type fakeSource struct {
	mu    sync.Mutex
	text  string
	err   error
	loads int
	gate  chan struct{}
}

func (f *fakeSource) Load(ctx context.Context) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.text, f.err
}

func (f *fakeSource) set(text string, err error) {
	f.mu.Lock()
	f.text, f.err = text, err
	f.mu.Unlock()
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock { return &clock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)} }

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(kbV1), 0o644))

	text, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, kbV1, text)

	_, err = FileSource{Path: path + ".missing"}.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileSource{Path: path}.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInitAndSnapshot(t *testing.T) {
	src := &fakeSource{text: kbV1}
	b := New(src, Options{})
	require.NoError(t, b.Init(context.Background()))

	s, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Entries, 2)
	assert.Equal(t, "FAP_CLIGNOTANT", s.Entries[0].Title)
	assert.Equal(t, 9, s.Entries[0].Priority)
	assert.Equal(t, 2, s.Index.DocumentCount)
	assert.Equal(t, uint64(1), s.Version)
	assert.Equal(t, 1, src.count())
}

func TestSnapshot_LazyBuild(t *testing.T) {
	src := &fakeSource{text: kbV1}
	b := New(src, Options{})
	s, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Entries, 2)
}

func TestSnapshot_RefreshInterval(t *testing.T) {
	clk := newClock()
	src := &fakeSource{text: kbV1}
	b := New(src, Options{Now: clk.Now})
	require.NoError(t, b.Init(context.Background()))

	src.set(kbV2, nil)
	clk.Advance(DefaultRefresh - time.Second)
	s, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Entries, 2)
	assert.Equal(t, 1, src.count())

	clk.Advance(time.Second)
	s, err = b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Entries, 3)
	assert.Equal(t, uint64(2), s.Version)
	assert.Equal(t, 2, src.count())
}

func TestSnapshot_FailedRebuildServesStale(t *testing.T) {
	clk := newClock()
	src := &fakeSource{text: kbV1}
	b := New(src, Options{Now: clk.Now})
	require.NoError(t, b.Init(context.Background()))

	src.set("", errors.New("disk gone"))
	clk.Advance(DefaultRefresh)
	s, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.Version)
	assert.Equal(t, 2, src.count())

	// the failure is not retried on every call
	_, err = b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.count())

	src.set(kbV2, nil)
	clk.Advance(DefaultRefresh)
	s, err = b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Entries, 3)
}

func TestSnapshot_NoSnapshotReturnsError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	b := New(src, Options{})
	_, err := b.Snapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.ErrorContains(t, err, "boom")
	assert.Error(t, b.Init(context.Background()))
}

func TestInvalidate(t *testing.T) {
	src := &fakeSource{text: kbV1}
	b := New(src, Options{})
	require.NoError(t, b.Init(context.Background()))

	src.set(kbV2, nil)
	b.Invalidate()
	s, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Entries, 3)

	_, err = b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.count())
}

func TestSnapshot_CoalescesConcurrentRebuilds(t *testing.T) {
	src := &fakeSource{text: kbV1, gate: make(chan struct{})}
	b := New(src, Options{Refresh: time.Hour})

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 16)
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := b.Snapshot(context.Background())
			assert.NoError(t, err)
			snaps[i] = s
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, 1, src.count())
	for _, s := range snaps {
		assert.Same(t, snaps[0], s)
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(kbV1), 0o644))

	b := New(FileSource{Path: path}, Options{Refresh: time.Hour})
	require.NoError(t, b.Init(context.Background()))
	require.NoError(t, b.Watch(path))
	t.Cleanup(func() { _ = b.Close() })
	assert.Error(t, b.Watch(path))

	require.NoError(t, os.WriteFile(path, []byte(kbV2), 0o644))
	require.Eventually(t, func() bool {
		s, err := b.Snapshot(context.Background())
		return err == nil && len(s.Entries) == 3
	}, 3*time.Second, 20*time.Millisecond)
}

func TestClose_WithoutWatch(t *testing.T) {
	b := New(&fakeSource{text: kbV1}, Options{})
	assert.NoError(t, b.Close())
}
