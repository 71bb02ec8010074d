package memory

import (
	"github.com/irdkwmnsb/webrtc-ingest/internal/domain"
	"github.com/irdkwmnsb/webrtc-ingest/internal/utils"
)

// SessionRepository keeps sessions in two lock-free indexes. It does not
// order concurrent writers; callers serialize writes.
type SessionRepository struct {
	byID     *utils.SyncMapWrapper[string, domain.Session]
	byClient *utils.SyncMapWrapper[string, string]
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		byID:     utils.NewSyncMapWrapper[string, domain.Session](),
		byClient: utils.NewSyncMapWrapper[string, string](),
	}
}

func (r *SessionRepository) Save(s domain.Session) error {
	r.byID.Store(s.ID, s)
	if s.ClientID != "" {
		r.byClient.Store(s.ClientID, s.ID)
	}
	return nil
}

func (r *SessionRepository) GetByID(id string) (domain.Session, error) {
	s, ok := r.byID.Load(id)
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (r *SessionRepository) GetByClient(clientID string) (domain.Session, error) {
	id, ok := r.byClient.Load(clientID)
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return r.GetByID(id)
}

func (r *SessionRepository) GetAll() ([]domain.Session, error) {
	sessions := make([]domain.Session, 0)
	r.byID.Range(func(_ string, s domain.Session) bool {
		sessions = append(sessions, s)
		return true
	})
	return sessions, nil
}

func (r *SessionRepository) Delete(id string) error {
	s, ok := r.byID.LoadAndDelete(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if s.ClientID != "" {
		r.byClient.CompareAndDelete(s.ClientID, s.ID)
	}
	return nil
}
