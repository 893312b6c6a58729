//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Outbound is the write side of one live connection.
// The registry only ever calls Deliver; the session owns everything else.
// Deliver must never block the caller: a full or closed buffer is an error
// surfaced to the registry, which swallows it and lets the session's own
// lifecycle reap the connection.
type Outbound interface {
	Deliver(payload []byte) error
}

// IRegistry is the single coordinator for room membership and delivery.
// All operations are serialized against each other by the implementation,
// so every broadcast observes a membership snapshot consistent with the
// total order of the calls that preceded it.
type IRegistry interface {
	Connect(out Outbound) (uint64, error)
	Disconnect(id uint64)
	Join(id uint64, room string) error
	Leave(id uint64) error
	SetDisplayName(id uint64, name string) error
	Broadcast(room string, payload []byte, excludeID uint64)
	ListRooms() []string
	RoomMembers(room string) []uint64
}
