// Package session lets a client whose connection dropped catch up on the
// broadcasts it missed instead of reloading the whole list.
//
// Every broadcast carries an offset. The store keeps a bounded log of recent
// broadcasts keyed by offset and remembers which sessions disconnected and
// when. A client resumes by naming its session and the last offset it applied.
package session

import (
	"context"
	"time"
)

// MaxFrames bounds the broadcast log. A client that fell further behind than
// this gets a full sync.
const MaxFrames = 512

// Record is one broadcast frame at its place in the log.
type Record struct {
	Offset int64
	Frame  []byte
}

// Store holds parked sessions and the broadcast log.
type Store interface {
	// Park starts the recovery window for a session that just disconnected.
	Park(ctx context.Context, id string) error
	// Claim ends a parked session's window. ok is false when the session is
	// unknown or its window has passed.
	Claim(ctx context.Context, id string) (ok bool, err error)
	// Append adds a broadcast to the log, evicting the oldest beyond MaxFrames.
	Append(ctx context.Context, rec Record) error
	// Since returns the logged records with an offset above after, oldest first.
	Since(ctx context.Context, after int64) ([]Record, error)
	Close() error
}

// Options configures a Store.
type Options struct {
	Window    time.Duration
	MaxFrames int
}

func (o Options) maxFrames() int {
	if o.MaxFrames <= 0 {
		return MaxFrames
	}
	return o.MaxFrames
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
