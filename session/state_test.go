package session_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/stretchr/testify/require"
)

func TestStore_StartsIdle(t *testing.T) {
	s := session.New()
	require.Equal(t, session.State{Status: session.StatusIdle}, s.Snapshot())
}

func TestStore_TransitionsArePublishedInOrder(t *testing.T) {
	s := session.New()

	var seen []session.Status
	unsubscribe := s.Subscribe(func(st session.State) {
		seen = append(seen, st.Status)
		// Listeners may read the state they were notified about
		require.Equal(t, st.Status, s.Snapshot().Status)
	})

	s.Begin(1)
	s.Fail(1, "ExchangeError", "bad credential")
	s.Begin(2)
	s.Succeed(2, users.Profile{ID: 7, Email: "a@b.com"})
	s.Reset(3)

	require.Equal(t, []session.Status{
		session.StatusAuthenticating,
		session.StatusFailed,
		session.StatusAuthenticating,
		session.StatusAuthenticated,
		session.StatusIdle,
	}, seen)

	unsubscribe()
	unsubscribe()
	s.Begin(4)
	require.Len(t, seen, 5)
}

func TestStore_BeginClearsPreviousError(t *testing.T) {
	s := session.New()
	s.Fail(1, "ExchangeError", "rejected")
	require.Equal(t, "rejected", s.Snapshot().Error)

	s.Begin(2)
	snap := s.Snapshot()
	require.Empty(t, snap.Error)
	require.Empty(t, snap.ErrorKind)
	require.Nil(t, snap.User)
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	s := session.New()
	role := int64(2)
	s.Succeed(1, users.Profile{ID: 7, RoleID: &role})

	snap := s.Snapshot()
	*snap.User.RoleID = 99
	snap.User.Email = "changed"

	again := s.Snapshot()
	require.Equal(t, int64(2), *again.User.RoleID)
	require.Empty(t, again.User.Email)
}

func TestStore_FailedNeverCarriesUser(t *testing.T) {
	s := session.New()
	s.Succeed(1, users.Profile{ID: 7})
	s.Fail(2, "ProfileFetchError", "failed to fetch user details")

	snap := s.Snapshot()
	require.Equal(t, session.StatusFailed, snap.Status)
	require.Nil(t, snap.User)
	require.Equal(t, uint64(2), snap.Attempt)
}
