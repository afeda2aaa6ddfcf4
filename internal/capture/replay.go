package capture

import (
	"fmt"
	"time"
)

// ReplayHandler receives one replayed frame.
type ReplayHandler func(Frame)

// Replayer walks a Session's frames back out at their original relative
// timing, scaled by Speed, for offline replay against a handler instead of
// a live adapter.
type Replayer struct {
	Session      *Session
	Speed        float64
	CurrentFrame int
}

// NewReplayer constructs a Replayer over session at real-time speed.
func NewReplayer(session *Session) *Replayer {
	return &Replayer{Session: session, Speed: 1.0}
}

// SetSpeed sets the replay speed multiplier. Non-positive values reset to
// real-time.
func (r *Replayer) SetSpeed(speed float64) {
	if speed <= 0 {
		speed = 1.0
	}
	r.Speed = speed
}

// Play walks the session's frames in order, calling handler for each and
// sleeping between frames to reproduce their original relative spacing
// divided by Speed. It returns once every frame has been delivered.
func (r *Replayer) Play(handler ReplayHandler) error {
	if len(r.Session.Frames) == 0 {
		return fmt.Errorf("no frames to replay")
	}

	wallStart := time.Now()
	sessionStart := r.Session.Frames[0].Timestamp

	for i, frame := range r.Session.Frames {
		r.CurrentFrame = i

		targetDelay := frame.Timestamp.Sub(sessionStart)
		adjustedDelay := time.Duration(float64(targetDelay) / r.Speed)
		actualDelay := time.Since(wallStart)
		if actualDelay < adjustedDelay {
			time.Sleep(adjustedDelay - actualDelay)
		}

		handler(frame)
	}
	r.CurrentFrame = len(r.Session.Frames)

	return nil
}

// JumpTo sets CurrentFrame to the first frame at or after t. Play always
// starts from the first frame, so the position set here is reflected only
// by Progress.
func (r *Replayer) JumpTo(t time.Time) error {
	for i, frame := range r.Session.Frames {
		if !frame.Timestamp.Before(t) {
			r.CurrentFrame = i
			return nil
		}
	}
	return fmt.Errorf("no frame at or after %s", t)
}

// Progress returns how far through the session the replay has advanced,
// as a fraction in [0, 1].
func (r *Replayer) Progress() float64 {
	if len(r.Session.Frames) == 0 {
		return 0
	}
	return float64(r.CurrentFrame) / float64(len(r.Session.Frames))
}
