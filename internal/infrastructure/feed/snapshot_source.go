package feed

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/flipfinder/backend/internal/domain"
)

// SnapshotSource replays saved feed pages. Each file is split into nodes on first use.
type SnapshotSource struct {
	pageURL string
	paths   []string

	mu     sync.Mutex
	nodes  []domain.FeedNode
	loaded int // number of files split so far
	cursor int
}

// NewSnapshotSource creates a source over HTML files saved from pageURL
func NewSnapshotSource(pageURL string, paths ...string) *SnapshotSource {
	return &SnapshotSource{pageURL: pageURL, paths: paths}
}

// Next returns the next candidate node, or io.EOF once every file is exhausted
func (s *SnapshotSource) Next(ctx context.Context) (domain.FeedNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.cursor >= len(s.nodes) {
		if err := ctx.Err(); err != nil {
			return domain.FeedNode{}, err
		}
		if s.loaded >= len(s.paths) {
			return domain.FeedNode{}, io.EOF
		}
		if err := s.loadNext(); err != nil {
			return domain.FeedNode{}, err
		}
	}

	node := s.nodes[s.cursor]
	s.cursor++
	return node, nil
}

func (s *SnapshotSource) loadNext() error {
	path := s.paths[s.loaded]
	s.loaded++

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	nodes, err := SplitPage(s.pageURL, string(data))
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}
	s.nodes = append(s.nodes, nodes...)
	return nil
}

// Restart rewinds to the first node; already split files are not re-read
func (s *SnapshotSource) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = 0
	return nil
}
