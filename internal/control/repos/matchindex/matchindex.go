// Package matchindex accelerates rule matching with a two-stage read path:
// a Bloom filter answers "no rule can possibly cover this domain" without a
// scan, and an LRU caches full match results. The whole index is rebuilt
// atomically from a rule snapshot on every rule mutation, so cached answers
// never outlive the rule set that produced them.
package matchindex

import (
	"strings"
	"sync"
	"sync/atomic"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/services/engine"
)

// Stats are cumulative cache counters plus the current prefilter state.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Prefilter bool // false while the bloom is disabled (pre-build or post-purge)
}

// Index implements engine.MatchIndex and rules.Invalidator.
//
// The Bloom filter holds exact rule domains plus the reversed suffix anchor
// of every wildcard rule; lookups test the name and the reversal of each of
// its dot-suffixes, mirroring how a wildcard can only match at a label
// boundary. With no filter loaded MightMatch answers true, degrading to a
// full scan instead of a wrong negative.
type Index struct {
	mu     sync.RWMutex
	bloom  *bitsbloom.BloomFilter
	cache  *lru.Cache[string, engine.MatchResult]
	gen    uint64 // guarded by mu; advances on Rebuild and Purge
	fpRate float64

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates an Index with an LRU of the given size and a target Bloom
// false-positive rate. The prefilter stays disabled until the first Rebuild.
func New(size int, fpRate float64) (*Index, error) {
	ix := &Index{fpRate: fpRate}
	cache, err := lru.NewWithEvict(size, func(string, engine.MatchResult) {
		atomic.AddUint64(&ix.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	ix.cache = cache
	return ix, nil
}

// MightMatch returns false only when the prefilter proves no exact or
// wildcard rule can cover name.
func (ix *Index) MightMatch(name string) bool {
	ix.mu.RLock()
	bf := ix.bloom
	ix.mu.RUnlock()
	if bf == nil {
		return true
	}
	if bf.Test([]byte(name)) {
		return true
	}
	// walk dot-suffixes from most specific to the apex, testing reversed anchors
	a := name
	for {
		if bf.Test([]byte(reverseString(a))) {
			return true
		}
		i := strings.IndexByte(a, '.')
		if i < 0 {
			return false
		}
		a = a[i+1:]
		if a == "" {
			return false
		}
	}
}

// Get returns a cached match result for name.
func (ix *Index) Get(name string) (engine.MatchResult, bool) {
	if m, ok := ix.cache.Get(name); ok {
		atomic.AddUint64(&ix.hits, 1)
		return m, true
	}
	atomic.AddUint64(&ix.misses, 1)
	return engine.MatchResult{}, false
}

// Generation identifies the rule snapshot this index reflects.
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.gen
}

// Put caches the match result for name. A result computed against an older
// generation is discarded: the read lock holds off a concurrent Rebuild, so
// a matching generation guarantees the entry lands before the next purge.
func (ix *Index) Put(name string, m engine.MatchResult, generation uint64) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if generation != ix.gen {
		return
	}
	ix.cache.Add(name, m)
}

// Rebuild sizes a fresh Bloom filter for the snapshot, loads exact names and
// reversed wildcard anchors, then swaps it in and purges the cache under one
// lock so readers never mix old and new state.
func (ix *Index) Rebuild(rulesSnapshot []domain.WebsiteRule) {
	n := uint(len(rulesSnapshot))
	if n == 0 {
		n = 1
	}
	bf := bitsbloom.NewWithEstimates(n, ix.fpRate)
	for _, r := range rulesSnapshot {
		if r.IsWildcard() {
			bf.Add([]byte(reverseString(r.Suffix())))
		} else {
			bf.Add([]byte(r.Domain))
		}
	}

	ix.mu.Lock()
	ix.bloom = bf
	ix.gen++
	ix.cache.Purge()
	ix.mu.Unlock()
}

// Purge drops the cache and disables the prefilter until the next Rebuild.
func (ix *Index) Purge() {
	ix.mu.Lock()
	ix.bloom = nil
	ix.gen++
	ix.cache.Purge()
	ix.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	prefilter := ix.bloom != nil
	ix.mu.RUnlock()
	return Stats{
		Hits:      atomic.LoadUint64(&ix.hits),
		Misses:    atomic.LoadUint64(&ix.misses),
		Evictions: atomic.LoadUint64(&ix.evictions),
		Prefilter: prefilter,
	}
}

// reverseString reverses the string bytes. Lookup anchors and stored anchors
// must use the same reversal so keys stay aligned.
func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

var _ engine.MatchIndex = (*Index)(nil)
