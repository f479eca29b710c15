package es

import "log/slog"

// Revision is the zero-based sequence number of an event within its stream.
// Revision 0 is the stream's creation event. Ordering within a stream is
// total by revision; ordering across streams is only defined by Position.
type Revision uint64

func (r Revision) Uint64() uint64                          { return uint64(r) }
func (r Revision) SlogAttr() slog.Attr                     { return newSlogRevisionAttr("revision", r) }
func (r Revision) SlogAttrWithKey(key string) slog.Attr    { return newSlogRevisionAttr(key, r) }
func newSlogRevisionAttr(key string, r Revision) slog.Attr { return slog.Uint64(key, uint64(r)) }

// Position is the opaque, totally ordered location of an event in the
// global log. It is assigned by the store and used for checkpointing.
type Position uint64

func (p Position) Uint64() uint64 { return uint64(p) }

// ExpectedRevision is the optimistic concurrency guard passed to Append.
// Non-negative values demand the stream's last revision to match exactly;
// the sentinels relax or invert that check.
type ExpectedRevision int64

const (
	// ExpectedAny disables the concurrency check.
	ExpectedAny ExpectedRevision = -2
	// ExpectedNoStream demands that the stream does not exist yet.
	ExpectedNoStream ExpectedRevision = -1
)

// Expect returns the ExpectedRevision matching an observed last revision.
func Expect(r Revision) ExpectedRevision { return ExpectedRevision(r) }

func (e ExpectedRevision) SlogAttr() slog.Attr { return slog.Int64("expected_revision", int64(e)) }
