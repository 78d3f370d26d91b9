package common

import (
	"context"
	"testing"

	"spend-ledger-go/internal/models"
	"spend-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory []models.User

func (f fakeDirectory) GetUsers(context.Context) ([]models.User, error) { return f, nil }

func (f fakeDirectory) FindUserByCustomerId(_ context.Context, customerId string) (*models.User, error) {
	for _, u := range f {
		if u.CustomerId == customerId {
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func TestInitializeUsers(t *testing.T) {
	dir := fakeDirectory{
		{Id: "u1", CustomerId: "cus_1", Name: "Ada", Email: "ada@example.com", Timezone: "Africa/Lagos"},
		{Id: "u2", CustomerId: "cus_2", Name: "Bola", Email: "bola@example.com"},
	}

	all, err := InitializeUsers(context.Background(), dir, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := InitializeUsers(context.Background(), dir, "cus_1")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, UserInfo{Id: "u1", CustomerId: "cus_1", Name: "Ada", Email: "ada@example.com", Timezone: "Africa/Lagos"}, one[0])

	_, err = InitializeUsers(context.Background(), dir, "cus_missing")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}
