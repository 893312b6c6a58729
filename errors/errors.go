package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrRegistryClosed    = fmt.Errorf("registry is no longer accepting requests")
	ErrSessionUnknown    = fmt.Errorf("session is not registered")
	ErrMalformedFrame    = fmt.Errorf("frame cannot be decoded")
	ErrSessionClosed     = fmt.Errorf("session is closed")
	ErrOutboundFull      = fmt.Errorf("outbound buffer is full")
	ErrNotFound          = fmt.Errorf("record not found")
	ErrUserAlreadyExists = fmt.Errorf("user already exists")
	ErrHeartbeatTimeout  = fmt.Errorf("no liveness signal before timeout")
	ErrEmptyRoomName     = fmt.Errorf("room name cannot be empty")
)
