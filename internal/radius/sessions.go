package radius

import (
	"errors"
	"sync"
	"time"

	"strand/internal/lifecycle"
	"strand/internal/models"

	"gorm.io/gorm"
)

// SessionStore — реестр живых сессий. Кормится аккаунтингом:
// Start/Interim → Upsert, Stop → Remove.
type SessionStore interface {
	lifecycle.SessionSource
	Upsert(s lifecycle.Session) error
	Remove(subscriberID string) error
}

// ─────────────────────────── gorm repo ───────────────────────────

type SessionRepo struct{ db *gorm.DB }

func NewSessionRepo(db *gorm.DB) *SessionRepo { return &SessionRepo{db: db} }

func (r *SessionRepo) Upsert(s lifecycle.Session) error {
	var m models.RadiusSession
	err := r.db.Where("subscriber_id = ?", s.SubscriberID).First(&m).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		m = models.RadiusSession{
			SubscriberID:  s.SubscriberID,
			Username:      s.Username,
			AcctSessionID: s.AcctSessionID,
			NASAddress:    s.NASAddress,
			StartedAt:     time.Now(),
		}
		return r.db.Create(&m).Error
	}
	m.Username = s.Username
	m.AcctSessionID = s.AcctSessionID
	m.NASAddress = s.NASAddress
	return r.db.Save(&m).Error
}

func (r *SessionRepo) Remove(subscriberID string) error {
	return r.db.Where("subscriber_id = ?", subscriberID).Delete(&models.RadiusSession{}).Error
}

func (r *SessionRepo) ActiveSession(subscriberID string) (lifecycle.Session, bool, error) {
	var m models.RadiusSession
	err := r.db.Where("subscriber_id = ?", subscriberID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lifecycle.Session{}, false, nil
		}
		return lifecycle.Session{}, false, err
	}
	return lifecycle.Session{
		SubscriberID:  m.SubscriberID,
		Username:      m.Username,
		AcctSessionID: m.AcctSessionID,
		NASAddress:    m.NASAddress,
	}, true, nil
}

// ─────────────────────────── in-memory store (fallback) ───────────────────────────

type memSessions struct {
	mu   sync.RWMutex
	byID map[string]lifecycle.Session
}

func NewMemSessions() *memSessions {
	return &memSessions{byID: make(map[string]lifecycle.Session)}
}

func (m *memSessions) Upsert(s lifecycle.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.SubscriberID] = s
	return nil
}

func (m *memSessions) Remove(subscriberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, subscriberID)
	return nil
}

func (m *memSessions) ActiveSession(subscriberID string) (lifecycle.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[subscriberID]
	return s, ok, nil
}
