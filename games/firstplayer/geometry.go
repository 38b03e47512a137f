/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package firstplayer

import "math"

// Point is a coordinate in the rendering surface's space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

type TouchPhase int

const (
	TouchBegin TouchPhase = iota
	TouchMove
)

func (t TouchPhase) String() string {
	switch t {
	case TouchBegin:
		return "begin"
	case TouchMove:
		return "move"
	default:
		return "unknown"
	}
}

// Touch is one raw pointer report from the presentation layer.
type Touch struct {
	Point
	Phase TouchPhase
}

type Verdict int

const (
	Accept Verdict = iota
	RejectFull
	RejectTooClose
	RejectBusy
	RejectMoved
	RejectExhausted
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accepted"
	case RejectFull:
		return "full"
	case RejectTooClose:
		return "too_close"
	case RejectBusy:
		return "busy"
	case RejectMoved:
		return "moved"
	case RejectExhausted:
		return "palette_exhausted"
	default:
		return "unknown"
	}
}

// Decision is the outcome of classifying a touch. SlotID is only set once a
// Session has created the slot for an accepted touch.
type Decision struct {
	Verdict Verdict
	At      Point
	SlotID  string
}

func (d Decision) Accepted() bool {
	return d.Verdict == Accept
}

// Classify decides whether a touch at p may create a new slot, given the
// positions of the slots that already exist.
func Classify(p Point, existing []Point, full bool, radius float64) Decision {
	if full {
		return Decision{Verdict: RejectFull, At: p}
	}

	for _, q := range existing {
		if p.Distance(q) < radius {
			return Decision{Verdict: RejectTooClose, At: p}
		}
	}

	return Decision{Verdict: Accept, At: p}
}
