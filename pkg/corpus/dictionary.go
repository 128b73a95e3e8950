package corpus

// Dictionary is a deduplicated, insertion-ordered set of field paths
type Dictionary struct {
	paths []string
	index map[string]struct{}
}

// NewDictionary creates an empty dictionary
func NewDictionary() *Dictionary {
	return &Dictionary{index: make(map[string]struct{})}
}

// Add appends path unless already present and reports whether it was new
func (d *Dictionary) Add(path string) bool {
	if _, ok := d.index[path]; ok {
		return false
	}
	d.index[path] = struct{}{}
	d.paths = append(d.paths, path)
	return true
}

// Contains reports whether path is present
func (d *Dictionary) Contains(path string) bool {
	_, ok := d.index[path]
	return ok
}

// Len returns the number of field paths
func (d *Dictionary) Len() int {
	return len(d.paths)
}

// Paths returns a copy of the field paths in first-seen order
func (d *Dictionary) Paths() []string {
	out := make([]string, len(d.paths))
	copy(out, d.paths)
	return out
}
