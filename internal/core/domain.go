package core

import (
	"strings"
)

// Domain is a normalized hostname: no scheme, no trailing slash, at least one dot.
type Domain string

func (d Domain) String() string {
	return string(d)
}

// Normalize cleans raw user or file input into a Domain. It strips surrounding
// whitespace, a leading http:// or https:// and a trailing slash, repeating
// until nothing changes so that Normalize is idempotent. Case is preserved.
// The second return is false when the input does not look like a hostname.
func Normalize(raw string) (Domain, bool) {
	value := strings.TrimSpace(raw)
	for {
		next := strings.TrimSpace(strings.TrimSuffix(stripScheme(value), "/"))
		if next == value {
			break
		}
		value = next
	}

	if len(value) <= 3 || !strings.Contains(value, ".") {
		return "", false
	}
	return Domain(value), true
}

// CleanURL reduces a URL echoed back by the status service to a display
// domain, dropping the scheme and a leading www.
func CleanURL(raw string) string {
	value := stripScheme(strings.TrimSpace(raw))
	if len(value) >= 4 && strings.EqualFold(value[:4], "www.") {
		value = value[4:]
	}
	return strings.TrimSuffix(value, "/")
}

func stripScheme(value string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return value[len(prefix):]
		}
	}
	return value
}

// DomainSet is an ordered, duplicate-free collection of domains.
// It is not safe for concurrent use; callers serialize access.
type DomainSet struct {
	order []Domain
	index map[Domain]struct{}
}

// NewDomainSet builds a set from already-normalized domains.
func NewDomainSet(domains ...Domain) *DomainSet {
	set := &DomainSet{}
	for _, d := range domains {
		set.Add(d)
	}
	return set
}

// Add inserts d if absent and reports whether it was inserted.
func (s *DomainSet) Add(d Domain) bool {
	if d == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[Domain]struct{})
	}
	if _, ok := s.index[d]; ok {
		return false
	}
	s.index[d] = struct{}{}
	s.order = append(s.order, d)
	return true
}

// AddRaw normalizes raw and inserts the result. It returns the normalized
// domain and whether it was newly inserted.
func (s *DomainSet) AddRaw(raw string) (Domain, bool) {
	d, ok := Normalize(raw)
	if !ok {
		return "", false
	}
	return d, s.Add(d)
}

// Remove deletes d and reports whether it was present.
func (s *DomainSet) Remove(d Domain) bool {
	if _, ok := s.index[d]; !ok {
		return false
	}
	delete(s.index, d)
	for i, existing := range s.order {
		if existing == d {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether d is in the set.
func (s *DomainSet) Contains(d Domain) bool {
	_, ok := s.index[d]
	return ok
}

// Clear empties the set.
func (s *DomainSet) Clear() {
	s.order = nil
	s.index = nil
}

// Len returns the number of domains.
func (s *DomainSet) Len() int {
	return len(s.order)
}

// List returns a copy of the domains in insertion order.
func (s *DomainSet) List() []Domain {
	out := make([]Domain, len(s.order))
	copy(out, s.order)
	return out
}

// Strings returns the domains as plain strings, in insertion order.
func (s *DomainSet) Strings() []string {
	out := make([]string, len(s.order))
	for i, d := range s.order {
		out[i] = string(d)
	}
	return out
}
