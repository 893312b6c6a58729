//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	apperrors "chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

type IUserRepository interface {
	CreateUser(fields CreateUserFields) (User, error)
	FindUserByID(id string) (User, error)
	FindUserByPhone(phone string) (User, error)
}

// User is the durable identity record resolved at connect time.
type User struct {
	ID          string    `json:"id"`
	Phone       string    `json:"phone"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateUserFields struct {
	Phone       string `validate:"required,e164"`
	DisplayName string `validate:"required,min=1,max=64"`
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// CreateUser validates the fields and persists the user in BadgerDB
// under both lookup keys, "user:id:{uuid}" and "user:phone:{phone}".
// Phone uniqueness is enforced inside the transaction.
func (u UserRepository) CreateUser(fields CreateUserFields) (User, error) {
	if err := validate.Struct(fields); err != nil {
		return User{}, fmt.Errorf("invalid user fields: %w", err)
	}

	user := User{
		ID:          uuid.NewString(),
		Phone:       fields.Phone,
		DisplayName: fields.DisplayName,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(user)
	if err != nil {
		return User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		phoneKey := []byte("user:phone:" + user.Phone)
		if _, err := txn.Get(phoneKey); err == nil {
			return apperrors.ErrUserAlreadyExists
		}
		if err := txn.Set([]byte("user:id:"+user.ID), data); err != nil {
			return err
		}
		return txn.Set(phoneKey, data)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (u UserRepository) FindUserByID(id string) (User, error) {
	return u.find("user:id:" + id)
}

func (u UserRepository) FindUserByPhone(phone string) (User, error) {
	return u.find("user:phone:" + phone)
}

func (u UserRepository) find(key string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, apperrors.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}
