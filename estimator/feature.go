package estimator

import "fmt"

// FeatureSchema names the columns of a FeatureRecord. A schema is built once per
// table and shared by every record produced from it.
type FeatureSchema struct {
	names []string
	index map[string]int
}

// NewFeatureSchema creates a schema over the given column names.
// Returns an error if a name is repeated.
func NewFeatureSchema(names []string) (*FeatureSchema, error) {
	s := &FeatureSchema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	copy(s.names, names)
	for i, name := range names {
		if _, dup := s.index[name]; dup {
			return nil, fmt.Errorf("feature schema: duplicate column %q", name)
		}
		s.index[name] = i
	}
	return s, nil
}

// Names returns the column names in order. The caller must not modify the result.
func (s *FeatureSchema) Names() []string {
	return s.names
}

// Len returns the number of columns.
func (s *FeatureSchema) Len() int {
	return len(s.names)
}

// Index returns the position of the named column.
func (s *FeatureSchema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// FeatureRecord is one transaction's numeric features as seen by a single server:
// array-valued raw features have already been reduced to that server's slot.
type FeatureRecord struct {
	Schema *FeatureSchema
	Values []float64
}

// Value returns the named feature.
func (r FeatureRecord) Value(name string) (float64, bool) {
	if r.Schema == nil {
		return 0, false
	}
	i, ok := r.Schema.Index(name)
	if !ok || i >= len(r.Values) {
		return 0, false
	}
	return r.Values[i], true
}
