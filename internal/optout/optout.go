// Package optout tracks shops that asked to be excluded from search
// results. Identifiers come from a blacklist file, one entry per line;
// every search filters against the normalized set.
package optout

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	shopSubdomainRe = regexp.MustCompile(`https?://([\w-]+)\.booth\.pm`)
	itemIDRe        = regexp.MustCompile(`/items/(\d+)`)
	numericRe       = regexp.MustCompile(`^\d+$`)
)

// reserved subdomains that never identify a shop.
var reservedSubdomains = map[string]bool{
	"www":       true,
	"extension": true,
	"manage":    true,
}

// Identifiers extracts stable shop identifiers from a BOOTH URL or free
// text: the shop subdomain, any item ID in the path, bare numeric IDs,
// and the lowercased text itself when it is not a URL.
func Identifiers(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	ids := make(map[string]bool)
	if m := shopSubdomainRe.FindStringSubmatch(text); m != nil {
		sub := strings.ToLower(m[1])
		if !reservedSubdomains[sub] {
			ids[sub] = true
		}
	}
	if m := itemIDRe.FindStringSubmatch(text); m != nil {
		ids[m[1]] = true
	}
	if numericRe.MatchString(text) {
		ids[text] = true
	}
	if !strings.HasPrefix(text, "http") {
		ids[strings.ToLower(text)] = true
	}

	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Registry is the in-memory opt-out set. Safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	set map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{set: make(map[string]bool)}
}

// LoadFile reads a blacklist file into a registry. Blank lines and lines
// starting with # are skipped; a missing file yields an empty registry.
func LoadFile(path string) (*Registry, error) {
	r := NewRegistry()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("optout: open blacklist: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("optout: read blacklist: %w", err)
	}
	return r, nil
}

// Add normalizes an entry and records every identifier it yields, plus
// the lowercased raw entry as a fallback.
func (r *Registry) Add(entry string) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range Identifiers(entry) {
		r.set[id] = true
	}
	r.set[strings.ToLower(entry)] = true
}

// Contains reports whether an identifier is opted out.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set[strings.ToLower(id)]
}

// Excluded returns the current identifier set, sorted for stable filter
// construction. Implements search.ExclusionSource.
func (r *Registry) Excluded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.set))
	for id := range r.set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of tracked identifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.set)
}
