package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/beacon/internal/codec"
	"github.com/roach88/beacon/internal/event"
	"github.com/roach88/beacon/internal/ident"
)

// Record is one tracked event waiting for delivery.
//
// The body is encoded once when the record is created and never changes. The
// identity snapshot is a private copy that may be back-filled while the
// record sits in a queue.
type Record struct {
	body      string
	eventType string
	ids       *ident.Set

	next  *Record
	owner *Queue
}

// NewRecord encodes body and snapshots ids.
func NewRecord(ids *ident.Set, body event.Fields) (*Record, error) {
	encoded, err := body.Encode()
	if err != nil {
		return nil, err
	}
	return &Record{
		body:      encoded,
		eventType: body.Type(),
		ids:       ids.Clone(),
	}, nil
}

func (r *Record) Body() string      { return r.body }
func (r *Record) EventType() string { return r.eventType }

// ID returns the snapshot value for t.
func (r *Record) ID(t ident.Type) string {
	return r.ids.Get(t)
}

// UpdateID back-fills an identifier into the snapshot. Sticky types that
// already hold a value are left alone. It reports whether the snapshot
// changed; a change invalidates the owning queue's caches.
func (r *Record) UpdateID(t ident.Type, value string) bool {
	if !t.Valid() || t.Fixed() {
		return false
	}
	cur := r.ids.Get(t)
	if cur == value {
		return false
	}
	if t.Sticky() && cur != "" {
		return false
	}
	r.ids.Set(t, value)
	if r.owner != nil {
		r.owner.recordChanged()
	}
	return true
}

// Render returns {"identifiers":{...},"event":{...}}.
func (r *Record) Render() string {
	ids, err := json.Marshal(r.ids)
	if err != nil {
		// ident.Set only marshals strings
		ids = []byte("{}")
	}
	var b strings.Builder
	b.Grow(len(ids) + len(r.body) + 27)
	b.WriteString(`{"identifiers":`)
	b.Write(ids)
	b.WriteString(`,"event":`)
	b.WriteString(r.body)
	b.WriteByte('}')
	return b.String()
}

func (r *Record) save(w *codec.Writer) {
	w.String(r.body)
	w.String(r.eventType)
	r.ids.Save(w)
}

func loadRecord(rd *codec.Reader, resolver ident.Resolver) (*Record, error) {
	body, err := rd.String()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	eventType, err := rd.String()
	if err != nil {
		return nil, fmt.Errorf("read event type: %w", err)
	}
	ids := ident.NewSet(resolver)
	if err := ids.Load(rd); err != nil {
		return nil, err
	}
	return &Record{body: body, eventType: eventType, ids: ids}, nil
}
