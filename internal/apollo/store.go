package apollo

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ErrNotObject is returned when the cache payload is not a JSON object.
var ErrNotObject = errors.New("apollo state is not an object")

// decodeOptions accept what browsers and lenient decoders accept: repeated
// member names keep the last value and lone surrogates decode to U+FFFD.
var decodeOptions = json.JoinOptions(
	jsontext.AllowDuplicateNames(true),
	jsontext.AllowInvalidUTF8(true),
)

// Store is the parsed cache for a single page.
type Store struct {
	keys  []string
	nodes map[string]Node
}

// Parse decodes a serialized cache object, keeping the key order of the source.
func Parse(raw []byte) (*Store, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(raw), decodeOptions)
	tok, err := dec.ReadToken()
	if err != nil {
		return nil, fmt.Errorf("read apollo state: %w", err)
	}
	if tok.Kind() != '{' {
		return nil, ErrNotObject
	}

	s := &Store{nodes: make(map[string]Node)}
	for dec.PeekKind() != '}' {
		name, err := dec.ReadToken()
		if err != nil {
			return nil, fmt.Errorf("read entry key: %w", err)
		}
		key := name.String()
		value, err := dec.ReadValue()
		if err != nil {
			return nil, fmt.Errorf("read entry %q: %w", key, err)
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded, decodeOptions); err != nil {
			return nil, fmt.Errorf("decode entry %q: %w", key, err)
		}
		if _, seen := s.nodes[key]; !seen {
			s.keys = append(s.keys, key)
		}
		s.nodes[key] = asNode(decoded)
	}
	if _, err := dec.ReadToken(); err != nil {
		return nil, fmt.Errorf("close apollo state: %w", err)
	}
	return s, nil
}

// Lookup returns the entry stored under key.
func (s *Store) Lookup(key string) (Node, bool) {
	if s == nil {
		return nil, false
	}
	n, ok := s.nodes[key]
	return n, ok
}

// Get returns the entry stored under key, or an empty node.
func (s *Store) Get(key string) Node {
	n, _ := s.Lookup(key)
	return n
}

// Resolve follows at most one reference marker. Inline objects are returned
// as-is, dangling references and non-objects yield an empty node.
func (s *Store) Resolve(v any) Node {
	n := asNode(v)
	if ref, ok := n.Ref(); ok {
		return s.Get(ref)
	}
	return n
}

// ResolveField resolves the value stored under field of n.
func (s *Store) ResolveField(n Node, field string) Node {
	return s.Resolve(n[field])
}

// First returns the first entry, in source order, whose key has prefix and
// whose node satisfies match.
func (s *Store) First(prefix string, match func(Node) bool) (string, Node, bool) {
	if s == nil {
		return "", nil, false
	}
	for _, key := range s.keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		n := s.nodes[key]
		if match == nil || match(n) {
			return key, n, true
		}
	}
	return "", nil, false
}
