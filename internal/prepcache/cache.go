// Package prepcache implements the three-tier Preparation Cache (spec.md
// §4.5): an in-memory LRU of PreparedMedia, a persisted blob tier on the
// MediaFile row, and a cold path that re-parses the source file's moov.
package prepcache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
	"mediavault/internal/fmp4"
	"mediavault/internal/metrics"
	"mediavault/internal/mp4"
	"mediavault/internal/segmap"
)

// waitPoll is how long a caller that lost the builder race waits before
// retrying the lookup, per spec.md §4.5 step 2 / §4.13's suspension points.
const waitPoll = 400 * time.Millisecond

// FileOpener resolves a MediaFile's on-disk path to a seekable,
// random-access reader, as internal/mp4.Parse requires.
type FileOpener interface {
	Open(path string) (ReaderAtCloser, int64, error)
}

// ReaderAtCloser is the minimal surface internal/mp4.Parse needs plus Close.
type ReaderAtCloser interface {
	ReadAt(p []byte, off int64) (int, error)
	Close() error
}

type entry struct {
	id           string
	prepared     *domain.PreparedMedia
	lastAccessed time.Time
	refCount     int32
}

// Cache is the Preparation Cache. It satisfies ports.PreparationCache.
type Cache struct {
	files      ports.MediaFileRepository
	opener     FileOpener
	maxEntries int

	mu      sync.Mutex
	items   map[string]*list.Element // id -> entry, order front = most recent
	order   *list.List
	pending map[string]chan struct{} // id -> close-on-publish signal
}

var _ ports.PreparationCache = (*Cache)(nil)

// New builds a Cache backed by files for row lookups and opener for reading
// media bytes on a cold build. maxEntries bounds the in-memory tier; once
// exceeded the least-recently-accessed entry is evicted.
func New(files ports.MediaFileRepository, opener FileOpener, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Cache{
		files:      files,
		opener:     opener,
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		pending:    make(map[string]chan struct{}),
	}
}

// GetOrBuild implements the lookup protocol in spec.md §4.5.
func (c *Cache) GetOrBuild(ctx context.Context, mediaFileID string) (*domain.PreparedMedia, error) {
	for {
		if pm, ok := c.lookupLocked(mediaFileID); ok {
			return pm, nil
		}

		claimed, wait := c.claimOrWait(mediaFileID)
		if !claimed {
			select {
			case <-wait:
			case <-time.After(waitPoll):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		pm, err := c.build(ctx, mediaFileID)
		c.finishClaim(mediaFileID)
		if err != nil {
			return nil, err
		}
		return pm, nil
	}
}

func (c *Cache) lookupLocked(id string) (*domain.PreparedMedia, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		metrics.PrepCacheMisses.Inc()
		return nil, false
	}
	e := el.Value.(*entry)
	e.lastAccessed = time.Now()
	e.refCount++
	c.order.MoveToFront(el)
	metrics.PrepCacheHits.Inc()
	return e.prepared, true
}

// claimOrWait tries to become the sole builder for id. If another caller
// already claimed it, it returns the signal channel to wait on.
func (c *Cache) claimOrWait(id string) (claimed bool, wait chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.pending[id]; ok {
		metrics.PrepCacheCoalescedWaitsTotal.Inc()
		return false, ch
	}
	c.pending[id] = make(chan struct{})
	metrics.PrepCacheBuilds.Inc()
	return true, nil
}

func (c *Cache) finishClaim(id string) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		close(ch)
	}
}

// build runs the claimer path: read the MediaFile row, deserialize the
// persisted blob if present, otherwise re-parse the file and construct
// PreparedMedia from scratch, persisting it best-effort.
func (c *Cache) build(ctx context.Context, id string) (*domain.PreparedMedia, error) {
	mf, err := c.files.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("prepcache: load media file %s: %w", id, err)
	}

	var pm *domain.PreparedMedia
	if len(mf.HLSPrepared) > 0 {
		pm, err = deserialize(mf.HLSPrepared)
		if err != nil {
			return nil, fmt.Errorf("prepcache: deserialize blob for %s: %w", id, err)
		}
		metrics.PrepCacheBlobHits.Inc()
	} else {
		pm, err = buildFromSource(ctx, c.opener, mf.Path)
		if err != nil {
			return nil, fmt.Errorf("prepcache: build from source for %s: %w", id, err)
		}
		if blob, serr := serialize(pm); serr == nil {
			_ = c.files.SetHLSPrepared(ctx, id, blob) // best-effort, not fatal
		}
	}
	pm.FilePath = mf.Path

	c.publish(id, pm)
	return pm, nil
}

func (c *Cache) publish(id string, pm *domain.PreparedMedia) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &entry{id: id, prepared: pm, lastAccessed: time.Now(), refCount: 1}
	el := c.order.PushFront(e)
	c.items[id] = el
	c.evictLocked()
}

func (c *Cache) evictLocked() {
	for c.order.Len() > c.maxEntries {
		back := c.order.Back()
		if back == nil {
			break
		}
		e := back.Value.(*entry)
		c.order.Remove(back)
		delete(c.items, e.id)
		metrics.PrepCacheEvictions.Inc()
	}
	metrics.PrepCacheEntries.Set(float64(c.order.Len()))
}

// Evict drops id from the memory tier only, per the port contract; in-flight
// holders keep their own reference and are unaffected.
func (c *Cache) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		c.order.Remove(el)
		delete(c.items, id)
		metrics.PrepCacheEntries.Set(float64(c.order.Len()))
	}
}

// Len returns the number of entries currently resident in the memory tier.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// buildFromSource runs spec.md §4.5 step 4: parse moov, build the segment
// map, build each segment's moof+mdat header, and the shared init segment.
func buildFromSource(ctx context.Context, opener FileOpener, path string) (*domain.PreparedMedia, error) {
	r, size, err := opener.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	meta, err := mp4.Parse(r, size)
	if err != nil {
		return nil, err
	}

	sm, err := segmap.Build(meta, segmap.DefaultTargetDuration)
	if err != nil {
		return nil, err
	}

	video := meta.VideoTrack()
	initSeg, err := fmp4.BuildInitSegment(meta)
	if err != nil {
		return nil, err
	}

	segments := make([]domain.Segment, len(sm.Segments))
	for i, seg := range sm.Segments {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		span := sm.Spans[i]
		samples := video.Samples[span.StartSample:span.EndSample]
		moof, mdatHeader, err := fmp4.BuildMoof(uint32(i+1), video.TrackID, uint64(span.StartDTS), samples)
		if err != nil {
			return nil, err
		}
		seg.MoofBytes = moof
		seg.MdatHeader = mdatHeader
		segments[i] = seg
	}

	return &domain.PreparedMedia{
		InitSegmentBytes: initSeg,
		Segments:         segments,
	}, nil
}

func serialize(pm *domain.PreparedMedia) ([]byte, error) {
	return json.Marshal(pm)
}

func deserialize(blob []byte) (*domain.PreparedMedia, error) {
	var pm domain.PreparedMedia
	if err := json.Unmarshal(blob, &pm); err != nil {
		return nil, err
	}
	return &pm, nil
}
