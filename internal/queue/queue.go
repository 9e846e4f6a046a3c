// Package queue holds tracked events until they are delivered.
//
// A Queue is a singly linked list of Records with O(1) append and O(1)
// splicing of a whole queue onto its front. The JSON rendering is cached and
// the persisted copy is only rewritten when the contents changed.
//
// Queues are not safe for concurrent use; the delivery engine drives them from
// a single goroutine.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"strings"

	"github.com/roach88/beacon/internal/codec"
	"github.com/roach88/beacon/internal/ident"
)

// FormatVersion is written at the start of every persisted queue.
const FormatVersion int32 = 1

// DefaultKey names the persisted queue in a Backing.
const DefaultKey = "beacon_messages"

var (
	// ErrUnsupportedVersion is returned by Decode for data written with a
	// different FormatVersion.
	ErrUnsupportedVersion = errors.New("queue: unsupported format version")

	// ErrCorrupt is returned when persisted data cannot be decoded.
	ErrCorrupt = errors.New("queue: corrupt data")
)

// Backing is the durable byte store a queue persists to. A missing key is
// reported with an error matching fs.ErrNotExist.
type Backing interface {
	ReadBlob(ctx context.Context, key string) ([]byte, error)
	WriteBlob(ctx context.Context, key string, data []byte) error
	DeleteBlob(ctx context.Context, key string) error
}

// Queue is an ordered collection of Records.
type Queue struct {
	head  *Record
	tail  *Record
	count int

	cached       string
	dirtyRender  bool
	dirtyPersist bool

	backing  Backing
	key      string
	resolver ident.Resolver
	logger   *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithStorage persists the queue under key in b.
func WithStorage(b Backing, key string) Option {
	return func(q *Queue) {
		q.backing = b
		q.key = key
	}
}

// WithResolver sets the device resolver given to identity sets of loaded
// records.
func WithResolver(r ident.Resolver) Option {
	return func(q *Queue) {
		q.resolver = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = l
	}
}

// New returns an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{key: DefaultKey, logger: slog.Default()}
	for _, opt := range opts {
		opt(q)
	}
	q.reset()
	return q
}

func (q *Queue) reset() {
	q.head = nil
	q.tail = nil
	q.count = 0
	q.cached = ""
	q.dirtyRender = true
	q.dirtyPersist = false
}

func (q *Queue) markDirty() {
	q.dirtyRender = true
	q.dirtyPersist = true
}

func (q *Queue) recordChanged() {
	q.markDirty()
}

func (q *Queue) Len() int    { return q.count }
func (q *Queue) Empty() bool { return q.head == nil }

// Dirty reports whether the contents changed since the last Save or Load.
func (q *Queue) Dirty() bool { return q.dirtyPersist }

// Append adds r to the end of the queue and takes ownership of it.
func (q *Queue) Append(r *Record) {
	r.next = nil
	r.owner = q
	if q.tail == nil {
		q.head = r
	} else {
		q.tail.next = r
	}
	q.tail = r
	q.count++
	q.markDirty()
}

// PrependQueue moves every record of other in front of this queue's records
// and leaves other empty. Records keep pointing at their previous owner
// unless reassign is set.
func (q *Queue) PrependQueue(other *Queue, reassign bool) {
	if other == q || other.Empty() {
		return
	}
	if reassign {
		for r := other.head; r != nil; r = r.next {
			r.owner = q
		}
	}
	if q.Empty() {
		q.head = other.head
		q.tail = other.tail
		q.count = other.count
		q.cached = other.cached
		q.dirtyRender = other.dirtyRender
		q.dirtyPersist = other.dirtyPersist
	} else {
		other.tail.next = q.head
		q.head = other.head
		q.count += other.count
		q.markDirty()
	}
	other.reset()
}

// Clear empties the queue. With destroyRecords every record is unlinked and
// released; otherwise only the queue's pointers are dropped. purgeStorage also
// deletes the persisted copy.
func (q *Queue) Clear(ctx context.Context, destroyRecords, purgeStorage bool) {
	if destroyRecords {
		r := q.head
		for r != nil {
			next := r.next
			r.next = nil
			r.owner = nil
			r = next
		}
	}
	q.reset()
	if purgeStorage {
		q.deleteStorage(ctx)
	}
}

func (q *Queue) deleteStorage(ctx context.Context) {
	if q.backing == nil {
		return
	}
	if err := q.backing.DeleteBlob(ctx, q.key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		q.logger.Warn("failed to delete persisted queue", "key", q.key, "error", err)
	}
}

// Render returns the queue as a JSON array of rendered records.
func (q *Queue) Render() string {
	if !q.dirtyRender {
		return q.cached
	}
	var b strings.Builder
	b.WriteByte('[')
	for r := q.head; r != nil; r = r.next {
		if r != q.head {
			b.WriteByte(',')
		}
		b.WriteString(r.Render())
	}
	b.WriteByte(']')
	q.cached = b.String()
	q.dirtyRender = false
	return q.cached
}

// Encode serializes the queue in the persisted format.
func (q *Queue) Encode() []byte {
	w := codec.NewWriter()
	w.Int32(FormatVersion)
	w.Int32(int32(q.count))
	for r := q.head; r != nil; r = r.next {
		r.save(w)
	}
	return w.Bytes()
}

// Save writes the queue to its backing store if it changed since the last
// Save. On failure the queue stays dirty so the next call retries.
func (q *Queue) Save(ctx context.Context) error {
	if !q.dirtyPersist || q.backing == nil {
		return nil
	}
	if err := q.backing.WriteBlob(ctx, q.key, q.Encode()); err != nil {
		return fmt.Errorf("save queue %q: %w", q.key, err)
	}
	q.dirtyPersist = false
	return nil
}

// Load replaces the contents with the persisted copy. Missing storage leaves
// the queue empty. Data of another format version is discarded and deleted
// without error. Undecodable data is deleted and reported as ErrCorrupt.
func (q *Queue) Load(ctx context.Context) error {
	q.Clear(ctx, true, false)
	if q.backing == nil {
		return nil
	}

	data, err := q.backing.ReadBlob(ctx, q.key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load queue %q: %w", q.key, err)
	}

	records, err := Decode(data, q.resolver)
	switch {
	case errors.Is(err, ErrUnsupportedVersion):
		q.logger.Warn("discarding persisted queue", "key", q.key, "error", err)
		q.deleteStorage(ctx)
		return nil
	case err != nil:
		q.deleteStorage(ctx)
		return fmt.Errorf("load queue %q: %w", q.key, err)
	}

	for _, r := range records {
		q.Append(r)
	}
	q.dirtyPersist = false
	return nil
}

// Decode parses persisted queue data into records.
func Decode(data []byte, resolver ident.Resolver) ([]*Record, error) {
	rd := codec.NewReader(data)
	version, err := rd.Int32()
	if err != nil {
		return nil, fmt.Errorf("%w: read version: %w", ErrCorrupt, err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	count, err := rd.Int32()
	if err != nil {
		return nil, fmt.Errorf("%w: read count: %w", ErrCorrupt, err)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative record count %d", ErrCorrupt, count)
	}

	records := make([]*Record, 0, min(int(count), rd.Remaining()))
	for i := range int(count) {
		r, err := loadRecord(rd, resolver)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrCorrupt, i, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// UpdateID back-fills an identifier into every record.
func (q *Queue) UpdateID(t ident.Type, value string) {
	changed := false
	for r := q.head; r != nil; r = r.next {
		if r.UpdateID(t, value) {
			changed = true
		}
	}
	// Records spliced in without reassignment notify their previous owner.
	if changed {
		q.markDirty()
	}
}

// HasEventType reports whether any record has the given type tag.
func (q *Queue) HasEventType(tag string) bool {
	for r := q.head; r != nil; r = r.next {
		if r.eventType == tag {
			return true
		}
	}
	return false
}

// All iterates the records in order.
func (q *Queue) All() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for r := q.head; r != nil; r = r.next {
			if !yield(r) {
				return
			}
		}
	}
}
