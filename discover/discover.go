// Package discover finds policy documents for --all mode. It walks
// directory trees breadth-first and keeps the file selection rules
// separate from the conversion pipeline.
package discover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultMaxFiles bounds one discovery run.
const DefaultMaxFiles = 5000

// Options tunes a discovery run.
type Options struct {
	Recursive bool
	MaxFiles  int // 0 means DefaultMaxFiles
}

// pathQueue is a FIFO of resolved paths. A path enters it once however it
// was spelled: relative, with dot segments, or through a symlink.
type pathQueue struct {
	paths []string
	head  int
	seen  map[string]struct{}
}

func newPathQueue() *pathQueue {
	return &pathQueue{seen: make(map[string]struct{})}
}

// push resolves p and enqueues it, reporting whether it was new.
func (q *pathQueue) push(p string) bool {
	key := NormalizePath(p)
	if _, ok := q.seen[key]; ok {
		return false
	}
	q.seen[key] = struct{}{}
	q.paths = append(q.paths, key)
	return true
}

func (q *pathQueue) pop() (string, bool) {
	if q.head == len(q.paths) {
		return "", false
	}
	p := q.paths[q.head]
	q.head++
	return p, true
}

// DiscoverAll finds every policy document under the given roots. A root
// that is itself a file is included when it passes IsPolicyFile. Results
// are in breadth-first order, sorted by name within a directory, and each
// file appears once.
func DiscoverAll(ctx context.Context, roots []string, opts Options) ([]string, error) {
	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	dirs, files := newPathQueue(), newPathQueue()
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", root, err)
		}
		switch {
		case info.IsDir():
			dirs.push(root)
		case IsPolicyFile(root) && len(files.paths) < maxFiles:
			files.push(root)
		}
	}

	for len(files.paths) < maxFiles {
		dir, ok := dirs.pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // Skip unreadable directories, don't block the run.
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			if e.IsDir() {
				if opts.Recursive && !SkipDir(e.Name()) {
					dirs.push(full)
				}
				continue
			}
			if IsPolicyFile(e.Name()) && len(files.paths) < maxFiles {
				files.push(full)
			}
		}
	}

	return files.paths, nil
}
