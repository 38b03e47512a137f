/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package firstplayer

import "errors"

var (
	ErrCapacityExceeded   = errors.New("registry is at capacity")
	ErrPaletteExhausted   = errors.New("no colors left in palette")
	ErrSelectionDisrupted = errors.New("selection disrupted")
	ErrInvalidPlayerCount = errors.New("invalid player count")
	ErrRegistryNotEmpty   = errors.New("player count can only change while no players are registered")
	ErrRegistryNotFull    = errors.New("registry is not full")
	ErrAlreadyStarted     = errors.New("selection already started")
	ErrResolved           = errors.New("selection already resolved")
	ErrNotHighlighting    = errors.New("no selection in progress")
	ErrUnknownSlot        = errors.New("unknown slot")
)
