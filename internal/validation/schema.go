package validation

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"

	coreval "3tcapital/ms_einvoice_batch/internal/core/validation"
)

// StructuralSource is the source label attached to structural findings.
const StructuralSource = "structural"

// Schema is the structural check run before any rule profile. It verifies
// the root tag and a list of required paths. Like the profiles it is
// compiled once and reused for every document of a burst.
type Schema struct {
	name     string
	root     string
	required []requiredPath
}

type requiredPath struct {
	raw      string
	compiled etree.Path
	message  string
}

// LoadSchema parses a structural schema definition:
//
//	<schema name="invoice" root="Invoice">
//	  <require path="Header/Number" message="missing document number"/>
//	</schema>
func LoadSchema(r io.Reader) (*Schema, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "schema" {
		return nil, fmt.Errorf("schema definition must have a <schema> root")
	}

	s := &Schema{
		name: root.SelectAttrValue("name", "structural"),
		root: root.SelectAttrValue("root", ""),
	}

	for _, req := range root.SelectElements("require") {
		raw := req.SelectAttrValue("path", "")
		if raw == "" {
			return nil, fmt.Errorf("schema %s: <require> without path", s.name)
		}
		compiled, err := etree.CompilePath(raw)
		if err != nil {
			return nil, fmt.Errorf("schema %s: compile path %q: %w", s.name, raw, err)
		}
		msg := req.SelectAttrValue("message", "required element missing: "+raw)
		s.required = append(s.required, requiredPath{raw: raw, compiled: compiled, message: msg})
	}

	return s, nil
}

// LoadSchemaFile reads a schema definition from disk.
func LoadSchemaFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema %s: %w", path, err)
	}
	defer f.Close()
	return LoadSchema(f)
}

// Check validates one document node. Every violation is a fatal finding;
// an empty result means the node is structurally sound.
func (s *Schema) Check(node *etree.Element) coreval.Result {
	var res coreval.Result

	if s.root != "" && node.Tag != s.root {
		res.Add(coreval.NewFinding(StructuralSource, coreval.SeverityFatal, "",
			fmt.Sprintf("unexpected root element %q, want %q", node.Tag, s.root)))
		return res
	}

	for _, req := range s.required {
		el := node.FindElementPath(req.compiled)
		if el == nil || strings.TrimSpace(el.Text()) == "" {
			res.Add(coreval.NewFinding(StructuralSource, coreval.SeverityFatal, "", req.message))
		}
	}

	return res
}

// Name returns the schema's declared name.
func (s *Schema) Name() string {
	return s.name
}
