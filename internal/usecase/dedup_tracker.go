package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/flipfinder/backend/internal/domain"
)

const (
	fingerprintTextRunes = 50
	fingerprintKeyLength = 100

	// DefaultClearInterval is how often the visited set is reset while scanning
	DefaultClearInterval = 5 * time.Minute
)

// Fingerprint derives the dedup key for a feed node from its link and visible text.
// Collisions are possible and accepted. When the normalized key is empty a random
// token is returned, so that node is never deduplicated.
func Fingerprint(link, text string) domain.ListingFingerprint {
	runes := []rune(text)
	if len(runes) > fingerprintTextRunes {
		runes = runes[:fingerprintTextRunes]
	}
	key := asciiOnly(link + string(runes))
	if len(key) > fingerprintKeyLength {
		key = key[:fingerprintKeyLength]
	}

	if key == "" {
		return domain.ListingFingerprint("rnd-" + uuid.NewString())
	}

	return domain.ListingFingerprint(fmt.Sprintf("%016x", xxhash.Sum64String(key)))
}

func asciiOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < 0x80 {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// DedupTracker is the visited set of listing fingerprints for one scanning session.
// The set only grows until Clear is called.
type DedupTracker struct {
	mu   sync.Mutex
	seen map[domain.ListingFingerprint]struct{}
}

// NewDedupTracker creates an empty tracker
func NewDedupTracker() *DedupTracker {
	return &DedupTracker{seen: make(map[domain.ListingFingerprint]struct{})}
}

// Has reports whether fp was marked since the last clear
func (t *DedupTracker) Has(fp domain.ListingFingerprint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[fp]
	return ok
}

// Mark records fp as processed
func (t *DedupTracker) Mark(fp domain.ListingFingerprint) {
	t.mu.Lock()
	t.seen[fp] = struct{}{}
	t.mu.Unlock()
}

// Clear forgets every fingerprint
func (t *DedupTracker) Clear() {
	t.mu.Lock()
	t.seen = make(map[domain.ListingFingerprint]struct{})
	t.mu.Unlock()
}

// Len returns the number of fingerprints currently tracked
func (t *DedupTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// RunPeriodicClear clears the tracker every interval until ctx is done
func (t *DedupTracker) RunPeriodicClear(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = DefaultClearInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Clear()
		}
	}
}
