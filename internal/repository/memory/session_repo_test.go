package memory

import (
	"testing"
	"time"

	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository(t *testing.T) {
	repo := NewSessionRepository()
	s := domain.Session{ID: "s1", ClientID: "c1", CreatedAt: time.Now(), State: domain.SessionStateAwaitingOffer}
	require.NoError(t, repo.Save(s))

	got, err := repo.GetByID("s1")
	require.NoError(t, err)
	require.Equal(t, s, got)

	got, err = repo.GetByClient("c1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.ID)

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, repo.Delete("s1"))
	_, err = repo.GetByID("s1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = repo.GetByClient("c1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	require.ErrorIs(t, repo.Delete("s1"), domain.ErrSessionNotFound)
}

func TestSessionRepositoryDeleteKeepsNewerClientIndex(t *testing.T) {
	repo := NewSessionRepository()
	require.NoError(t, repo.Save(domain.Session{ID: "old", ClientID: "c1"}))
	require.NoError(t, repo.Save(domain.Session{ID: "new", ClientID: "c1"}))

	require.NoError(t, repo.Delete("old"))

	got, err := repo.GetByClient("c1")
	require.NoError(t, err)
	require.Equal(t, "new", got.ID)
}
