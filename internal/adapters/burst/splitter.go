package burst

import (
	"fmt"
	"io"

	"github.com/beevik/etree"
)

// Splitter cuts one input file into individual document nodes on the
// configured repeating tag (the burst key).
type Splitter struct {
	key string
}

// NewSplitter creates a splitter for the given burst key tag name.
func NewSplitter(key string) *Splitter {
	return &Splitter{key: key}
}

// Split parses the input and returns every element whose tag matches the
// burst key, in document order. The returned elements stay attached to
// the parsed tree, which must outlive them; callers treat the batch as
// read-only.
func (s *Splitter) Split(r io.Reader) ([]*etree.Element, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parse burst input: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("burst input has no root element")
	}

	// A file holding a single bare document is a burst of one.
	if root.Tag == s.key {
		return []*etree.Element{root}, nil
	}

	nodes := doc.FindElements("//" + s.key)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no %q nodes found in burst input", s.key)
	}
	return nodes, nil
}
