package ident

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/beacon/internal/codec"
)

// Entry is one exported identifier.
type Entry struct {
	Name  string
	Value string
}

// Set stores one value per identity type. An empty string means unset.
//
// Fixed types are not stored; Get reads them from the resolver the Set was
// created with. A Set is not safe for concurrent use.
type Set struct {
	values   [typeCount]string
	resolver Resolver
}

// NewSet returns an empty Set. resolver may be nil, in which case fixed types
// always read as empty.
func NewSet(resolver Resolver) *Set {
	return &Set{resolver: resolver}
}

// Get returns the value for t, or "" when unknown.
func (s *Set) Get(t Type) string {
	if !t.Valid() {
		return ""
	}
	if t.Fixed() {
		if s.resolver == nil {
			return ""
		}
		return s.resolver.DeviceID()
	}
	return s.values[t]
}

// Set stores value for t. Sticky types keep their first non-empty value and
// ignore later writes until cleared. Fixed and unknown types are ignored.
func (s *Set) Set(t Type, value string) {
	if !t.Valid() || t.Fixed() {
		return
	}
	if t.Sticky() && s.values[t] != "" {
		return
	}
	s.values[t] = value
}

// Clear resets t to the empty value, sticky or not.
func (s *Set) Clear(t Type) {
	if !t.Valid() || t.Fixed() {
		return
	}
	s.values[t] = ""
}

// Clone returns an independent copy sharing the same resolver.
func (s *Set) Clone() *Set {
	c := *s
	return &c
}

// Platform returns the naming platform of the resolver.
func (s *Set) Platform() Platform {
	if s.resolver == nil {
		return PlatformGeneric
	}
	return s.resolver.Platform()
}

// Export returns the non-empty identifiers in type order keyed by their
// external names.
func (s *Set) Export() []Entry {
	p := s.Platform()
	out := make([]Entry, 0, typeCount)
	for _, t := range allTypes {
		if v := s.Get(t); v != "" {
			out = append(out, Entry{Name: ExportName(t, p), Value: v})
		}
	}
	return out
}

// MarshalJSON renders Export as a JSON object, preserving type order.
func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.Export() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Save writes every non-empty value as (type tag, string) followed by the end
// marker.
func (s *Set) Save(w *codec.Writer) {
	for _, t := range allTypes {
		if v := s.Get(t); v != "" {
			w.Byte(byte(t))
			w.String(v)
		}
	}
	w.Byte(endOfSet)
}

// Load reads a block written by Save. Values are assigned directly, so sticky
// types loaded from storage replace whatever the Set held.
func (s *Set) Load(r *codec.Reader) error {
	for {
		tag, err := r.Byte()
		if err != nil {
			return fmt.Errorf("read identity tag: %w", err)
		}
		if tag == endOfSet {
			return nil
		}
		t := Type(tag)
		if !t.Valid() {
			return fmt.Errorf("%w: tag %d", ErrUnknownType, tag)
		}
		v, err := r.String()
		if err != nil {
			return fmt.Errorf("read %s identity: %w", t, err)
		}
		if !t.Fixed() {
			s.values[t] = v
		}
	}
}
