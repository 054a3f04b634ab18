package lifecycle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// InternalCodeWidth is the fixed width of internal status codes in the
// legacy store.
const InternalCodeWidth = 2

// CodeMap translates external lifecycle codes into the fixed-length
// internal codes the legacy schema stores. The mapping is loaded once per
// engine instance and never mutated afterwards, so lookups are safe from
// any goroutine.
type CodeMap struct {
	entries      map[Code]string
	defaultValue string
}

// NewCodeMap parses `EXTERNAL=INTERNAL` lines from r. Blank lines and
// lines starting with '#' are skipped. Internal codes are truncated to
// the fixed width, as is the default when it is too long, so the map is
// always a left-total function into the legacy column.
func NewCodeMap(r io.Reader, defaultValue string) (*CodeMap, error) {
	cm := &CodeMap{
		entries:      make(map[Code]string),
		defaultValue: truncateCode(defaultValue),
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("code map line %d: missing '=' in %q", lineNo, line)
		}
		cm.entries[Code(strings.TrimSpace(key))] = truncateCode(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read code map: %w", err)
	}

	return cm, nil
}

// LoadCodeMap reads the mapping resource from path. A missing file is not
// an error: it yields an empty map where every lookup falls back to the
// default value.
func LoadCodeMap(path, defaultValue string) (*CodeMap, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &CodeMap{
				entries:      make(map[Code]string),
				defaultValue: truncateCode(defaultValue),
			}, nil
		}
		return nil, fmt.Errorf("open code map %s: %w", path, err)
	}
	defer f.Close()

	cm, err := NewCodeMap(f, defaultValue)
	if err != nil {
		return nil, fmt.Errorf("parse code map %s: %w", path, err)
	}
	return cm, nil
}

// Internal returns the internal code for an external code, or the default
// when the code is unmapped.
func (cm *CodeMap) Internal(code Code) string {
	if v, ok := cm.entries[code]; ok {
		return v
	}
	return cm.defaultValue
}

// Len returns the number of mapped codes.
func (cm *CodeMap) Len() int {
	return len(cm.entries)
}

func truncateCode(v string) string {
	if len(v) > InternalCodeWidth {
		return v[:InternalCodeWidth]
	}
	return v
}
