package repositories

import (
	"testing"

	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserRepository_CreateAndFind(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	// When a valid user is created
	created, err := repo.CreateUser(CreateUserFields{
		Phone:       "+33612345678",
		DisplayName: "Alice",
	})
	req.NoError(err)
	req.NotEmpty(created.ID)

	// Then it can be found by id and by phone
	byID, err := repo.FindUserByID(created.ID)
	req.NoError(err)
	req.Equal(created.ID, byID.ID)
	req.Equal("Alice", byID.DisplayName)

	byPhone, err := repo.FindUserByPhone("+33612345678")
	req.NoError(err)
	req.Equal(created.ID, byPhone.ID)
}

func TestUserRepository_FindUnknown_ReturnsNotFound(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	_, err := repo.FindUserByID("ghost")
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = repo.FindUserByPhone("+33700000000")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestUserRepository_CreateUser_RejectsDuplicatePhone(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	_, err := repo.CreateUser(CreateUserFields{Phone: "+33612345678", DisplayName: "Alice"})
	req.NoError(err)

	_, err = repo.CreateUser(CreateUserFields{Phone: "+33612345678", DisplayName: "Impostor"})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_CreateUser_ValidatesFields(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	// An invalid phone never reaches the store
	_, err := repo.CreateUser(CreateUserFields{Phone: "not-a-phone", DisplayName: "Alice"})
	req.Error(err)

	// A missing display name is rejected as well
	_, err = repo.CreateUser(CreateUserFields{Phone: "+33612345678", DisplayName: ""})
	req.Error(err)

	_, err = repo.FindUserByPhone("+33612345678")
	req.ErrorIs(err, errors.ErrNotFound)
}
