// Package event builds the JSON bodies of tracked events.
//
// A body is a flat object with a "type" tag, an optional "timestamp" and the
// fields of the particular event. Optional string fields left empty are
// omitted.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Reserved body keys.
const (
	TypeKey      = "type"
	TimestampKey = "timestamp"
)

// TimestampLayout formats event timestamps in local time.
const TimestampLayout = "2006-01-02 15:04:05"

// Event type tags.
const (
	TypeRevenue       = "revenue"
	TypeHeartbeat     = "heartbeat"
	TypeItemPurchase  = "item_purchase"
	TypeTutorial      = "tutorial"
	TypeMilestone     = "milestone"
	TypeMarketing     = "marketing"
	TypeUserAttribute = "user_attribute"
	TypeCountry       = "country"
	TypePlatform      = "platform"
)

// Fields is an event body under construction.
type Fields map[string]any

// New starts a body of the given type. A non-zero ts adds a timestamp field.
func New(typ string, ts time.Time) Fields {
	f := Fields{TypeKey: typ}
	if !ts.IsZero() {
		f[TimestampKey] = ts.Format(TimestampLayout)
	}
	return f
}

// Set stores value under key unconditionally. Strings are NFC normalized.
func (f Fields) Set(key string, value any) {
	if s, ok := value.(string); ok {
		value = norm.NFC.String(s)
	}
	f[key] = value
}

// Put stores a string only when it is non-empty.
func (f Fields) Put(key, value string) {
	if value == "" {
		return
	}
	f.Set(key, value)
}

// Type returns the "type" tag, or "" when the body has none.
func (f Fields) Type() string {
	s, _ := f[TypeKey].(string)
	return s
}

// Encode serializes the body as a JSON object with sorted keys. HTML
// characters are written literally.
func (f Fields) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(f)); err != nil {
		return "", fmt.Errorf("encode %q event: %w", f.Type(), err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Timestamped reports whether events of type typ carry a timestamp.
func Timestamped(typ string) bool {
	switch typ {
	case TypeRevenue, TypeHeartbeat, TypeItemPurchase, TypeTutorial, TypeMilestone:
		return true
	}
	return false
}
