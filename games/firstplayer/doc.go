/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package firstplayer decides which of the fingers resting on a shared
// touchscreen goes first.
//
// A Session owns a Registry of player slots and a selection Engine. Touches
// that begin far enough from every existing slot create a new slot; once the
// configured number of slots exists, the Engine runs a timed highlight
// sequence and then commits to a single winner.
//
// Highlight policy: every tick highlights one slot drawn uniformly at random
// from the participants frozen at the start of the sequence, so the same slot
// may light up on consecutive ticks. The winner is a fresh uniform draw made
// after the settle delay and is independent of the last highlighted slot.
//
// A Session is not safe for concurrent use. All calls, including Fire, must
// come from the goroutine that owns it.
package firstplayer
