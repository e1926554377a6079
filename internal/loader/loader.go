// Package loader fetches mesh assets and decodes them into scene graphs.
//
// Decoded scenes are cached per URL and never handed out directly: every
// Load returns a private clone that the caller may mutate.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Faultbox/meshpreview/pkg/formats"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

var ErrEmptyURL = errors.New("empty asset URL")

// LoadError wraps any fetch or decode failure for a URL.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader fetches, decodes and caches scenes.
type Loader struct {
	fetcher      Fetcher
	log          *zap.Logger
	fetchTimeout time.Duration

	mu    sync.Mutex
	cache map[string]*scene.Scene
	// epoch is bumped by Invalidate so an in-flight fetch started before
	// the invalidation does not repopulate the cache.
	epoch map[string]uint64

	group   singleflight.Group
	fetches atomic.Int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default discards output.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		l.log = log
	}
}

// WithFetchTimeout bounds each shared fetch. Zero means no limit.
func WithFetchTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.fetchTimeout = d
	}
}

// New creates a loader backed by fetcher.
func New(fetcher Fetcher, opts ...Option) *Loader {
	l := &Loader{
		fetcher: fetcher,
		log:     zap.NewNop(),
		cache:   make(map[string]*scene.Scene),
		epoch:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns a private copy of the scene at url. Concurrent loads of one
// URL share a single fetch. If ctx ends first, Load returns ctx.Err() and
// the shared fetch keeps running for the other callers and the cache.
func (l *Loader) Load(ctx context.Context, url string) (*scene.Scene, error) {
	if url == "" {
		return nil, &LoadError{URL: url, Err: ErrEmptyURL}
	}

	l.mu.Lock()
	cached, ok := l.cache[url]
	l.mu.Unlock()
	if ok {
		l.log.Debug("cache hit", zap.String("url", url))
		return cached.Clone(), nil
	}

	ch := l.group.DoChan(url, func() (any, error) {
		return l.fetch(context.WithoutCancel(ctx), url)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, &LoadError{URL: url, Err: res.Err}
		}
		return res.Val.(*scene.Scene).Clone(), nil
	}
}

func (l *Loader) fetch(ctx context.Context, url string) (*scene.Scene, error) {
	if l.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.fetchTimeout)
		defer cancel()
	}

	l.mu.Lock()
	epoch := l.epoch[url]
	l.mu.Unlock()

	n := l.fetches.Add(1)
	start := time.Now()
	l.log.Debug("fetching asset", zap.String("url", url), zap.Int64("attempt", n))

	asset, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		l.log.Warn("fetch failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	s, err := formats.Decode(asset.Name, asset.ContentType, asset.Data)
	if err != nil {
		l.log.Warn("decode failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	st := s.Stats()
	l.log.Info("asset loaded",
		zap.String("url", url),
		zap.Int("bytes", len(asset.Data)),
		zap.Int("meshes", st.Meshes),
		zap.Int("triangles", st.Triangles),
		zap.Duration("took", time.Since(start)))

	l.mu.Lock()
	if l.epoch[url] == epoch {
		l.cache[url] = s
	}
	l.mu.Unlock()
	return s, nil
}

// Invalidate drops the cached scene for url so the next Load fetches it
// again. An in-flight fetch is detached from later callers.
func (l *Loader) Invalidate(url string) {
	l.mu.Lock()
	delete(l.cache, url)
	l.epoch[url]++
	l.mu.Unlock()
	l.group.Forget(url)
}

// Fetches returns the number of fetch attempts made so far.
func (l *Loader) Fetches() int64 {
	return l.fetches.Load()
}
