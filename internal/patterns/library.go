// Package patterns holds the signal libraries and the scorer that
// projects post text onto them.
package patterns

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type SetName string

const (
	SetNeed     SetName = "need"
	SetPersonal SetName = "personal"
	SetSkill    SetName = "skill"
	SetDanger   SetName = "danger"
	SetOffer    SetName = "offer"
	SetNonTech  SetName = "non_tech"
)

// RequiredSets are the sets both classifiers read; a library missing any
// of them is rejected at load time.
var RequiredSets = []SetName{SetNeed, SetPersonal, SetSkill, SetDanger, SetOffer, SetNonTech}

type Kind string

const (
	KindLiteral Kind = "literal"
	KindRegex   Kind = "regex"
)

// Pattern is one trigger. ID is the source text as written in the
// library and doubles as the matched-signal identifier.
type Pattern struct {
	ID   string
	Kind Kind
	re   *regexp.Regexp
}

//go:embed default_patterns.yaml
var defaultLibraryYAML []byte

type libraryFile struct {
	Version int                  `yaml:"version"`
	Sets    map[SetName][]string `yaml:"sets"`
}

// Library is an immutable, versioned collection of pattern sets.
type Library struct {
	Version int
	sets    map[SetName]*Set
}

// Parse compiles a YAML library document.
func Parse(data []byte) (*Library, error) {
	var f libraryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse pattern library yaml: %w", err)
	}
	lib := &Library{Version: f.Version, sets: make(map[SetName]*Set, len(f.Sets))}
	for name, exprs := range f.Sets {
		set, err := NewSet(name, exprs)
		if err != nil {
			return nil, err
		}
		lib.sets[name] = set
	}
	for _, name := range RequiredSets {
		if _, ok := lib.sets[name]; !ok {
			return nil, fmt.Errorf("pattern library missing set %q", name)
		}
	}
	return lib, nil
}

// LoadFile reads and compiles a library from disk.
func LoadFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern library: %w", err)
	}
	return Parse(data)
}

// Default returns the library compiled into the binary.
func Default() *Library {
	lib, err := Parse(defaultLibraryYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded pattern library: %v", err))
	}
	return lib
}

// Set returns the named set, or an empty set when the library has none.
func (l *Library) Set(name SetName) *Set {
	if s, ok := l.sets[name]; ok {
		return s
	}
	return emptySet(name)
}

// Size returns the total number of patterns across all sets.
func (l *Library) Size() int {
	n := 0
	for _, s := range l.sets {
		n += len(s.patterns)
	}
	return n
}

func compilePattern(expr string) (Pattern, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Pattern{}, fmt.Errorf("empty pattern")
	}
	if regexp.QuoteMeta(expr) == expr {
		return Pattern{ID: strings.ToLower(expr), Kind: KindLiteral}, nil
	}
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return Pattern{ID: expr, Kind: KindRegex, re: re}, nil
}
