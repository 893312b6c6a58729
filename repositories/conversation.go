//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	apperrors "chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
)

type IConversationRepository interface {
	FindConversationByID(id string) (Conversation, error)
	ListRoomNames() ([]string, error)
}

// Conversation maps a durable conversation record to the room that
// carries it. These records are read-only inputs to room naming; the
// routing core never mutates them.
type Conversation struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	CreatedAt time.Time `json:"created_at"`
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) IConversationRepository {
	return &ConversationRepository{db: db}
}

func (c ConversationRepository) FindConversationByID(id string) (Conversation, error) {
	var conv Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("conv:" + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conv)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return Conversation{}, apperrors.ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// ListRoomNames scans the "room:" prefix and returns the persisted room
// names. Keys carry the name directly so no value decoding is needed.
func (c ConversationRepository) ListRoomNames() ([]string, error) {
	var names []string
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			names = append(names, strings.TrimPrefix(key, "room:"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
