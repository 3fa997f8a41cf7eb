package exception

import "errors"

// Wiring errors. Fatal at graph construction time, never recovered.
var (
	ErrSlotNotConnected = errors.New("slot not connected")
	ErrSlotTypeMismatch = errors.New("slot type mismatch")
	ErrNodeNotFound     = errors.New("node not found")
)
