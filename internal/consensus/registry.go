package consensus

import (
	"strings"
	"sync"
)

// Registry tracks the URLs of known peers. Membership only grows.
type Registry struct {
	self string

	mu    sync.RWMutex
	peers []string
	known map[string]struct{}
}

// NewRegistry creates a registry for the node reachable at selfURL
func NewRegistry(selfURL string) *Registry {
	return &Registry{
		self:  NormalizeURL(selfURL),
		known: make(map[string]struct{}),
	}
}

// NormalizeURL trims surrounding whitespace and trailing slashes
func NormalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

// Self returns the node's own URL
func (r *Registry) Self() string {
	return r.self
}

// Register adds url unless it is empty, the node itself or already known
func (r *Registry) Register(url string) bool {
	url = NormalizeURL(url)
	if url == "" || url == r.self {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[url]; ok {
		return false
	}
	r.known[url] = struct{}{}
	r.peers = append(r.peers, url)
	return true
}

// RegisterBulk registers every url and returns how many were new
func (r *Registry) RegisterBulk(urls []string) int {
	added := 0
	for _, url := range urls {
		if r.Register(url) {
			added++
		}
	}
	return added
}

// Contains reports whether url is a registered peer
func (r *Registry) Contains(url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[NormalizeURL(url)]
	return ok
}

// Peers returns the fan-out targets in registration order, self excluded
func (r *Registry) Peers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.peers...)
}

// AllNodes returns every known peer followed by the node itself
func (r *Registry) AllNodes() []string {
	nodes := r.Peers()
	if r.self != "" {
		nodes = append(nodes, r.self)
	}
	return nodes
}
