package domain

import "encoding/json"

// FilterSet is an ordered set of filter names. Order is insertion order,
// which the scoring engine keeps equal to catalog declaration order.
// The zero value is an empty set.
type FilterSet struct {
	names []string
}

// NewFilterSet builds a set, dropping duplicates and empty names.
func NewFilterSet(names ...string) FilterSet {
	var fs FilterSet
	for _, n := range names {
		fs.Add(n)
	}
	return fs
}

// Add inserts name if it is not already present.
func (fs *FilterSet) Add(name string) {
	if name == "" || fs.Contains(name) {
		return
	}
	fs.names = append(fs.names, name)
}

// Contains reports whether name is in the set.
func (fs FilterSet) Contains(name string) bool {
	for _, n := range fs.names {
		if n == name {
			return true
		}
	}
	return false
}

// ContainsAll reports whether every name is in the set.
// An empty argument list is trivially satisfied.
func (fs FilterSet) ContainsAll(names ...string) bool {
	for _, n := range names {
		if !fs.Contains(n) {
			return false
		}
	}
	return true
}

// Names returns a copy of the members in order.
func (fs FilterSet) Names() []string {
	out := make([]string, len(fs.names))
	copy(out, fs.names)
	return out
}

// Len returns the number of members.
func (fs FilterSet) Len() int {
	return len(fs.names)
}

// MarshalJSON encodes the set as a JSON array.
func (fs FilterSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(fs.Names())
}

// UnmarshalJSON decodes a JSON array (null decodes to the empty set).
func (fs *FilterSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*fs = NewFilterSet(names...)
	return nil
}
