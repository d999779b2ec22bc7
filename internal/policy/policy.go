// Package policy loads the rule sets the tribunal enforces. A policy file
// maps "global" and department names to lists of natural-language rules.
package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
)

// GlobalKey names the rules that apply to every department.
const GlobalKey = "global"

// Document maps lowercased department names to their rules.
type Document map[string][]string

// Default is used when no policy file exists.
func Default() Document {
	return Document{GlobalKey: {"Be helpful."}}
}

// Store holds the current policy document. It is safe for concurrent use.
type Store struct {
	path string

	mu  sync.RWMutex
	doc Document
}

// NewStatic creates a Store over a fixed document with no backing file.
func NewStatic(doc Document) *Store {
	return &Store{doc: normalize(doc)}
}

// Load reads the policy file at path. A missing file (or empty path) yields
// the default document; a malformed file is an error.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file. On error the current document is kept.
func (s *Store) Reload() error {
	doc, err := readFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// Rules returns the global rules followed by the department's rules.
// The department lookup is case-insensitive.
func (s *Store) Rules(department string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]string(nil), s.doc[GlobalKey]...)
	dept := strings.ToLower(strings.TrimSpace(department))
	if dept != "" && dept != GlobalKey {
		out = append(out, s.doc[dept]...)
	}
	return out
}

// Departments returns the department names that have rules, sorted.
func (s *Store) Departments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.doc))
	for name := range s.doc {
		if name != GlobalKey {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func readFile(path string) (Document, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("policy file not found, using default policy", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	doc, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a policy document. ext selects the format: ".yaml"/".yml",
// ".toml", anything else is JSON.
func Parse(data []byte, ext string) (Document, error) {
	var raw map[string]any
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		raw, err = yaml.Parser().Unmarshal(data)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, err
	}

	doc := make(Document, len(raw))
	for key, value := range raw {
		rules, err := toRules(value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		doc[key] = rules
	}
	return normalize(doc), nil
}

func toRules(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		rules := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("rule %d is %T, want string", i, item)
			}
			rules = append(rules, s)
		}
		return rules, nil
	default:
		return nil, fmt.Errorf("rules are %T, want a list of strings", value)
	}
}

func normalize(doc Document) Document {
	out := make(Document, len(doc))
	for key, rules := range doc {
		k := strings.ToLower(strings.TrimSpace(key))
		for _, r := range rules {
			if r = strings.TrimSpace(r); r != "" {
				out[k] = append(out[k], r)
			}
		}
	}
	return out
}
