package venue_test

import (
	"context"
	"errors"
	"testing"

	"parity/internal/venue"
	"parity/internal/venue/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockBuilder(acct venue.Account) (venue.Adapter, error) {
	return mock.New(acct), nil
}

func TestFactoryCreateIsIdempotentPerCredential(t *testing.T) {
	f := venue.NewFactory()
	f.Register(mock.Name, mockBuilder)
	ctx := context.Background()

	acct := venue.Account{ID: "acct-1", Venue: "mock", APIKey: "key-a"}
	a1, id1, err := f.CreateAdapter(ctx, acct)
	require.NoError(t, err)
	a2, id2, err := f.CreateAdapter(ctx, acct)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, f.ActiveInstances())

	// A different credential gets its own instance.
	_, id3, err := f.CreateAdapter(ctx, venue.Account{ID: "acct-2", Venue: "mock", APIKey: "key-b"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
	assert.Equal(t, 2, f.ActiveInstances())
}

func TestFactoryDestroyReferenceCounts(t *testing.T) {
	f := venue.NewFactory()
	f.Register(mock.Name, mockBuilder)
	ctx := context.Background()

	acct := venue.Account{ID: "acct-1", Venue: "mock", APIKey: "key-a"}
	adapter, id, err := f.CreateAdapter(ctx, acct)
	require.NoError(t, err)
	_, _, err = f.CreateAdapter(ctx, acct)
	require.NoError(t, err)

	// Two references: the first destroy keeps the instance alive.
	require.NoError(t, f.DestroyAdapter(ctx, id))
	assert.Equal(t, 1, f.ActiveInstances())
	assert.True(t, adapter.Healthy())

	require.NoError(t, f.DestroyAdapter(ctx, id))
	assert.Equal(t, 0, f.ActiveInstances())
	assert.False(t, adapter.Healthy())
}

func TestFactoryDestroyUnknownIDIsNoop(t *testing.T) {
	f := venue.NewFactory()
	assert.NoError(t, f.DestroyAdapter(context.Background(), "no-such-instance"))
}

func TestFactoryRejectsUnknownVenue(t *testing.T) {
	f := venue.NewFactory()
	_, _, err := f.CreateAdapter(context.Background(), venue.Account{ID: "a", Venue: "kraken"})
	require.Error(t, err)
	assert.Equal(t, venue.CodeValidation, venue.CodeOf(err))
}

func TestFactoryConnectFailureSurfacesAsTaxonomyError(t *testing.T) {
	f := venue.NewFactory()
	f.Register(mock.Name, func(acct venue.Account) (venue.Adapter, error) {
		a := mock.New(acct)
		a.FailConnect(errors.New("venue down"))
		return a, nil
	})

	_, _, err := f.CreateAdapter(context.Background(), venue.Account{ID: "a", Venue: "mock", APIKey: "k"})
	require.Error(t, err)
	assert.Equal(t, venue.CodeConnection, venue.CodeOf(err))
	assert.Equal(t, 0, f.ActiveInstances())
}

func TestFactoryBreakerTripsAfterRepeatedFailures(t *testing.T) {
	f := venue.NewFactory()
	f.Register(mock.Name, func(acct venue.Account) (venue.Adapter, error) {
		a := mock.New(acct)
		a.FailConnect(errors.New("venue down"))
		return a, nil
	})
	ctx := context.Background()
	acct := venue.Account{ID: "a", Venue: "mock", APIKey: "k"}

	for i := 0; i < 3; i++ {
		_, _, err := f.CreateAdapter(ctx, acct)
		require.Error(t, err)
	}
	// The breaker is open now: the builder is not even consulted.
	_, _, err := f.CreateAdapter(ctx, acct)
	require.Error(t, err)
	assert.Equal(t, venue.CodeConnection, venue.CodeOf(err))
	assert.Contains(t, err.Error(), "temporarily disabled")
}
