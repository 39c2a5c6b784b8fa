// Package kb owns the parsed knowledge base and its TF-IDF index, rebuilding
// both from their source when they age out or the source file changes.
package kb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"fapassist/internal/domain"
	"fapassist/internal/knowledge"
	"fapassist/internal/lexicon"
	"fapassist/internal/logging"
	"fapassist/internal/textproc"
	"fapassist/internal/tfidf"
)

// DefaultRefresh is how long a snapshot is served before it is rebuilt.
const DefaultRefresh = 5 * time.Minute

// ErrNoSnapshot is returned when no knowledge base could ever be built.
var ErrNoSnapshot = errors.New("kb: no knowledge base loaded")

// Source yields the raw knowledge-base text.
type Source interface {
	Load(ctx context.Context) (string, error)
}

// FileSource reads the knowledge base from a file on disk.
type FileSource struct {
	Path string
}

// Load reads the whole file.
func (s FileSource) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read knowledge base: %w", err)
	}
	return string(data), nil
}

// Snapshot is an immutable, fully built knowledge base.
type Snapshot struct {
	Entries []domain.KnowledgeEntry
	Index   *tfidf.Index
	BuiltAt time.Time
	Version uint64
}

// Options tune a Base. Zero values select the defaults.
type Options struct {
	Refresh  time.Duration
	Parser   *knowledge.Parser
	Analyzer *textproc.Analyzer
	Now      func() time.Time
}

// Base serves knowledge-base snapshots. Concurrent rebuilds are coalesced and
// readers never observe a partially built snapshot.
type Base struct {
	src      Source
	refresh  time.Duration
	parser   *knowledge.Parser
	analyzer *textproc.Analyzer
	now      func() time.Time

	snap     atomic.Pointer[Snapshot]
	stale    atomic.Bool
	failedAt atomic.Int64
	version  atomic.Uint64
	group    singleflight.Group

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// New returns a Base reading from src. Nothing is loaded until Init or the
// first Snapshot call.
func New(src Source, opts Options) *Base {
	b := &Base{
		src:      src,
		refresh:  opts.Refresh,
		parser:   opts.Parser,
		analyzer: opts.Analyzer,
		now:      opts.Now,
	}
	if b.refresh <= 0 {
		b.refresh = DefaultRefresh
	}
	if b.parser == nil {
		b.parser = knowledge.NewParser(lexicon.Default().Priority)
	}
	if b.analyzer == nil {
		b.analyzer = textproc.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Init builds the first snapshot.
func (b *Base) Init(ctx context.Context) error {
	_, err, _ := b.group.Do("rebuild", func() (any, error) { return b.rebuild(ctx) })
	return err
}

// Snapshot returns the current snapshot, rebuilding it first when it is older
// than the refresh interval or was invalidated. When a rebuild fails the
// previous snapshot keeps being served; the failure is retried after another
// refresh interval or the next invalidation.
func (b *Base) Snapshot(ctx context.Context) (*Snapshot, error) {
	cur := b.snap.Load()
	if cur != nil && !b.needsRebuild(cur) {
		return cur, nil
	}
	v, err, _ := b.group.Do("rebuild", func() (any, error) { return b.rebuild(ctx) })
	if err != nil {
		if cur != nil {
			logging.Logger().Warn("kb: rebuild failed, serving previous snapshot",
				"version", cur.Version, "err", err)
			return cur, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrNoSnapshot, err)
	}
	return v.(*Snapshot), nil
}

// Invalidate makes the next Snapshot call rebuild.
func (b *Base) Invalidate() {
	b.stale.Store(true)
}

func (b *Base) needsRebuild(s *Snapshot) bool {
	if b.stale.Load() {
		return true
	}
	now := b.now()
	if now.Sub(s.BuiltAt) < b.refresh {
		return false
	}
	failed := b.failedAt.Load()
	return failed == 0 || now.Sub(time.Unix(0, failed)) >= b.refresh
}

func (b *Base) rebuild(ctx context.Context) (*Snapshot, error) {
	b.stale.Store(false)
	raw, err := b.src.Load(ctx)
	if err != nil {
		b.failedAt.Store(b.now().UnixNano())
		return nil, err
	}
	entries := b.parser.Parse(raw)
	snap := &Snapshot{
		Entries: entries,
		Index:   tfidf.Build(b.analyzer, entries),
		BuiltAt: b.now(),
		Version: b.version.Add(1),
	}
	b.snap.Store(snap)
	b.failedAt.Store(0)
	logging.Logger().Info("kb: rebuilt", "entries", len(entries), "version", snap.Version)
	return snap, nil
}

// Watch invalidates the knowledge base whenever path is written, created,
// renamed or removed. The parent directory is watched so editors that
// replace the file are noticed too.
func (b *Base) Watch(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.watcher != nil {
		return errors.New("kb: already watching")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("kb: create watcher: %w", err)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("kb: resolve %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return fmt.Errorf("kb: watch %s: %w", path, err)
	}
	b.watcher = w
	b.wg.Add(1)
	go b.watchLoop(w, target)
	logging.Logger().Info("kb: watching", "path", target)
	return nil
}

func (b *Base) watchLoop(w *fsnotify.Watcher, target string) {
	defer b.wg.Done()
	const ops = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || ev.Op&ops == 0 {
				continue
			}
			logging.Logger().Debug("kb: source changed", "path", ev.Name, "op", ev.Op.String())
			b.Invalidate()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.Logger().Warn("kb: watcher error", "err", err)
		}
	}
}

// Close stops the watcher, if any. The last snapshot stays readable.
func (b *Base) Close() error {
	b.mu.Lock()
	w := b.watcher
	b.watcher = nil
	b.mu.Unlock()
	if w == nil {
		return nil
	}
	err := w.Close()
	b.wg.Wait()
	return err
}
