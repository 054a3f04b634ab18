package validation

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Profile is a named, compiled set of business rules. Compilation happens
// once at construction through three stages: resolve cross-references,
// expand abstract patterns, compile path tests to an executable program.
// Running a profile executes the cached program against one document node
// and produces a structured report.
type Profile struct {
	name  string
	rules []compiledRule
}

type compiledRule struct {
	id      string
	flag    string
	message string
	context etree.Path
	asserts []assertion
}

type assertion struct {
	kind    assertKind
	path    etree.Path
	rawPath string
	arg     string
	re      *regexp.Regexp
	countOp string
	countN  int
	message string
}

type assertKind int

const (
	assertExists assertKind = iota
	assertNonEmpty
	assertEquals
	assertMatches
	assertCount
)

// Report is the structured output of one profile run, parsed back into
// findings by the engine.
type Report struct {
	Profile string
	Entries []ReportEntry
}

// ReportEntry is one failed assertion.
type ReportEntry struct {
	RuleID  string
	Flag    string
	Message string
}

// --- source model -----------------------------------------------------

type profileSource struct {
	name     string
	patterns []patternSource
	applies  []applySource
}

type patternSource struct {
	id       string
	abstract bool
	rules    []ruleSource
}

type ruleSource struct {
	id       string
	abstract bool
	extends  string
	context  string
	flag     string
	message  string
	asserts  []assertSource
}

type assertSource struct {
	test    string
	message string
}

type applySource struct {
	id      string
	pattern string
	params  map[string]string
}

// LoadProfile parses and fully compiles a rule-set profile definition:
//
//	<profile name="EN16931">
//	  <pattern id="totals">
//	    <rule id="BR-CO-15" context="Totals" flag="error" message="...">
//	      <assert test="non-empty(InclTax)"/>
//	    </rule>
//	  </pattern>
//	  <pattern id="amount-present" abstract="true">
//	    <rule id="$rule" context="$section" message="$label is required">
//	      <assert test="non-empty($field)"/>
//	    </rule>
//	  </pattern>
//	  <apply id="tax-present" pattern="amount-present">
//	    <param name="rule" value="BR-52"/>
//	    ...
//	  </apply>
//	</profile>
func LoadProfile(r io.Reader) (*Profile, error) {
	src, err := parseProfile(r)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveReferences(src)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", src.name, err)
	}

	expanded, err := expandAbstract(resolved)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", src.name, err)
	}

	rules, err := compileRules(expanded)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", src.name, err)
	}

	return &Profile{name: src.name, rules: rules}, nil
}

// LoadProfileFile reads a profile definition from disk.
func LoadProfileFile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile %s: %w", path, err)
	}
	defer f.Close()
	return LoadProfile(f)
}

// Name returns the profile name used as finding source.
func (p *Profile) Name() string {
	return p.name
}

// Run executes the compiled program against one document node. Rules
// whose context matches nothing do not fire, mirroring the source
// validator's semantics.
func (p *Profile) Run(node *etree.Element) *Report {
	report := &Report{Profile: p.name}

	for _, rule := range p.rules {
		contexts := node.FindElementsPath(rule.context)
		for _, ctx := range contexts {
			for _, a := range rule.asserts {
				if a.holds(ctx) {
					continue
				}
				msg := a.message
				if msg == "" {
					msg = rule.message
				}
				if msg == "" {
					msg = "assertion failed: " + a.rawPath
				}
				report.Entries = append(report.Entries, ReportEntry{
					RuleID:  rule.id,
					Flag:    rule.flag,
					Message: msg,
				})
			}
		}
	}

	return report
}

// --- stage 0: parse ---------------------------------------------------

func parseProfile(r io.Reader) (*profileSource, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "profile" {
		return nil, fmt.Errorf("profile definition must have a <profile> root")
	}

	src := &profileSource{name: root.SelectAttrValue("name", "")}
	if src.name == "" {
		return nil, fmt.Errorf("profile without name attribute")
	}

	for _, pe := range root.SelectElements("pattern") {
		pattern := patternSource{
			id:       pe.SelectAttrValue("id", ""),
			abstract: pe.SelectAttrValue("abstract", "") == "true",
		}
		for _, re := range pe.SelectElements("rule") {
			rule := ruleSource{
				id:       re.SelectAttrValue("id", ""),
				abstract: re.SelectAttrValue("abstract", "") == "true",
				extends:  re.SelectAttrValue("extends", ""),
				context:  re.SelectAttrValue("context", ""),
				flag:     re.SelectAttrValue("flag", ""),
				message:  re.SelectAttrValue("message", ""),
			}
			for _, ae := range re.SelectElements("assert") {
				rule.asserts = append(rule.asserts, assertSource{
					test:    ae.SelectAttrValue("test", ""),
					message: ae.SelectAttrValue("message", ""),
				})
			}
			pattern.rules = append(pattern.rules, rule)
		}
		src.patterns = append(src.patterns, pattern)
	}

	for _, ae := range root.SelectElements("apply") {
		apply := applySource{
			id:      ae.SelectAttrValue("id", ""),
			pattern: ae.SelectAttrValue("pattern", ""),
			params:  make(map[string]string),
		}
		for _, pe := range ae.SelectElements("param") {
			apply.params[pe.SelectAttrValue("name", "")] = pe.SelectAttrValue("value", "")
		}
		src.applies = append(src.applies, apply)
	}

	return src, nil
}

// --- stage 1: resolve cross-references --------------------------------

// resolveReferences inlines the asserts (and missing attributes) of every
// rule referenced through extends. Abstract rules only serve as reference
// targets and are removed afterwards.
func resolveReferences(src *profileSource) (*profileSource, error) {
	byID := make(map[string]ruleSource)
	for _, pattern := range src.patterns {
		for _, rule := range pattern.rules {
			if rule.id != "" {
				byID[rule.id] = rule
			}
		}
	}

	out := &profileSource{name: src.name, applies: src.applies}
	for _, pattern := range src.patterns {
		resolved := patternSource{id: pattern.id, abstract: pattern.abstract}
		for _, rule := range pattern.rules {
			if rule.abstract {
				continue
			}
			if rule.extends != "" {
				base, ok := byID[rule.extends]
				if !ok {
					return nil, fmt.Errorf("rule %s extends unknown rule %q", rule.id, rule.extends)
				}
				rule.asserts = append(append([]assertSource{}, base.asserts...), rule.asserts...)
				if rule.context == "" {
					rule.context = base.context
				}
				if rule.flag == "" {
					rule.flag = base.flag
				}
				if rule.message == "" {
					rule.message = base.message
				}
				rule.extends = ""
			}
			resolved.rules = append(resolved.rules, rule)
		}
		out.patterns = append(out.patterns, resolved)
	}

	return out, nil
}

// --- stage 2: expand abstract patterns --------------------------------

// expandAbstract instantiates every <apply> by cloning the referenced
// abstract pattern with $param placeholders substituted. Abstract
// patterns never reach the compiled program themselves.
func expandAbstract(src *profileSource) ([]patternSource, error) {
	abstract := make(map[string]patternSource)
	var concrete []patternSource
	for _, pattern := range src.patterns {
		if pattern.abstract {
			abstract[pattern.id] = pattern
		} else {
			concrete = append(concrete, pattern)
		}
	}

	for _, apply := range src.applies {
		base, ok := abstract[apply.pattern]
		if !ok {
			return nil, fmt.Errorf("apply %s references unknown abstract pattern %q", apply.id, apply.pattern)
		}

		instance := patternSource{id: apply.id}
		for _, rule := range base.rules {
			clone := ruleSource{
				id:      substitute(rule.id, apply.params),
				context: substitute(rule.context, apply.params),
				flag:    substitute(rule.flag, apply.params),
				message: substitute(rule.message, apply.params),
			}
			for _, a := range rule.asserts {
				clone.asserts = append(clone.asserts, assertSource{
					test:    substitute(a.test, apply.params),
					message: substitute(a.message, apply.params),
				})
			}
			instance.rules = append(instance.rules, clone)
		}
		concrete = append(concrete, instance)
	}

	return concrete, nil
}

func substitute(s string, params map[string]string) string {
	for name, value := range params {
		s = strings.ReplaceAll(s, "$"+name, value)
	}
	return s
}

// --- stage 3: compile to executable program ---------------------------

var countTestRe = regexp.MustCompile(`^count\((.+)\)\s*(>=|<=|==|>|<)\s*(\d+)$`)

func compileRules(patterns []patternSource) ([]compiledRule, error) {
	var rules []compiledRule
	for _, pattern := range patterns {
		for _, rule := range pattern.rules {
			if rule.context == "" {
				return nil, fmt.Errorf("rule %s has no context", rule.id)
			}
			ctxPath, err := etree.CompilePath(rule.context)
			if err != nil {
				return nil, fmt.Errorf("rule %s: compile context %q: %w", rule.id, rule.context, err)
			}

			compiled := compiledRule{
				id:      rule.id,
				flag:    rule.flag,
				message: rule.message,
				context: ctxPath,
			}
			for _, a := range rule.asserts {
				assertion, err := compileAssert(a)
				if err != nil {
					return nil, fmt.Errorf("rule %s: %w", rule.id, err)
				}
				compiled.asserts = append(compiled.asserts, assertion)
			}
			rules = append(rules, compiled)
		}
	}
	return rules, nil
}

func compileAssert(src assertSource) (assertion, error) {
	test := strings.TrimSpace(src.test)
	a := assertion{message: src.message}

	if m := countTestRe.FindStringSubmatch(test); m != nil {
		path, err := etree.CompilePath(strings.TrimSpace(m[1]))
		if err != nil {
			return a, fmt.Errorf("compile count path %q: %w", m[1], err)
		}
		n, _ := strconv.Atoi(m[3])
		a.kind = assertCount
		a.path = path
		a.rawPath = m[1]
		a.countOp = m[2]
		a.countN = n
		return a, nil
	}

	name, rest, ok := strings.Cut(test, "(")
	if !ok || !strings.HasSuffix(rest, ")") {
		return a, fmt.Errorf("unsupported test expression %q", test)
	}
	rest = strings.TrimSuffix(rest, ")")

	switch name {
	case "exists":
		a.kind = assertExists
	case "non-empty":
		a.kind = assertNonEmpty
	case "equals", "matches":
		pathPart, argPart, found := strings.Cut(rest, ",")
		if !found {
			return a, fmt.Errorf("test %q needs two arguments", test)
		}
		rest = strings.TrimSpace(pathPart)
		arg := strings.Trim(strings.TrimSpace(argPart), "'")
		if name == "equals" {
			a.kind = assertEquals
			a.arg = arg
		} else {
			re, err := regexp.Compile(arg)
			if err != nil {
				return a, fmt.Errorf("compile pattern %q: %w", arg, err)
			}
			a.kind = assertMatches
			a.re = re
		}
	default:
		return a, fmt.Errorf("unsupported test function %q", name)
	}

	path, err := etree.CompilePath(strings.TrimSpace(rest))
	if err != nil {
		return a, fmt.Errorf("compile path %q: %w", rest, err)
	}
	a.path = path
	a.rawPath = strings.TrimSpace(rest)
	return a, nil
}

func (a assertion) holds(ctx *etree.Element) bool {
	switch a.kind {
	case assertExists:
		return ctx.FindElementPath(a.path) != nil
	case assertNonEmpty:
		el := ctx.FindElementPath(a.path)
		return el != nil && strings.TrimSpace(el.Text()) != ""
	case assertEquals:
		el := ctx.FindElementPath(a.path)
		return el != nil && strings.TrimSpace(el.Text()) == a.arg
	case assertMatches:
		el := ctx.FindElementPath(a.path)
		return el != nil && a.re.MatchString(strings.TrimSpace(el.Text()))
	case assertCount:
		n := len(ctx.FindElementsPath(a.path))
		switch a.countOp {
		case ">=":
			return n >= a.countN
		case "<=":
			return n <= a.countN
		case "==":
			return n == a.countN
		case ">":
			return n > a.countN
		case "<":
			return n < a.countN
		}
	}
	return false
}
