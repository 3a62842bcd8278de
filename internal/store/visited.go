package store

import "sync"

// Visited is the set of URLs fetched during one refresh run.
type Visited struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisited returns an empty set.
func NewVisited() *Visited {
	return &Visited{urls: make(map[string]struct{})}
}

// MarkVisited adds url and reports whether it was absent. Callers fetch only on true.
func (v *Visited) MarkVisited(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.urls[url]; ok {
		return false
	}
	v.urls[url] = struct{}{}
	return true
}

// Seen reports whether url has been marked.
func (v *Visited) Seen(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[url]
	return ok
}

// Len is the number of marked URLs.
func (v *Visited) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}
