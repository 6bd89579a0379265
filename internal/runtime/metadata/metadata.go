package metadata

import "sort"

// Metadata represents the string attributes carried alongside a queue message.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// WithAllExcept behaves like WithAll but skips entries whose key is listed in
// protected, leaving the existing values for those keys untouched.
func (m Metadata) WithAllExcept(entries Metadata, protected ...string) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		if contains(protected, k) {
			continue
		}
		cloned[k] = v
	}
	return cloned
}

// Lookup returns the value stored under key and whether it was present.
func (m Metadata) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys returns the metadata keys in lexical order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
