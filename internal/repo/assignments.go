package repo

import (
	"errors"
	"time"

	"strand/internal/lifecycle"
	"strand/internal/models"

	"gorm.io/gorm"
)

// AssignmentStore — gorm-реализация lifecycle.Store.
// CAS сделан guarded UPDATE'ом по колонке state: ноль затронутых строк — конфликт.
type AssignmentStore struct {
	db *gorm.DB
}

func NewAssignmentStore(db *gorm.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func (s *AssignmentStore) Get(subscriberID string) (lifecycle.Assignment, bool, error) {
	var m models.IPv6Assignment
	err := s.db.Where("subscriber_id = ?", subscriberID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lifecycle.Assignment{}, false, nil
		}
		return lifecycle.Assignment{}, false, err
	}
	return toDTO(m), true, nil
}

func (s *AssignmentStore) Create(a lifecycle.Assignment) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.IPv6Assignment
		err := tx.Where("subscriber_id = ?", a.SubscriberID).First(&existing).Error
		if err == nil {
			return lifecycle.ErrExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		m := models.IPv6Assignment{
			SubscriberID: a.SubscriberID,
			State:        string(a.State),
		}
		return tx.Create(&m).Error
	})
}

func (s *AssignmentStore) CompareAndSwap(subscriberID string, expected lifecycle.State, a lifecycle.Assignment) error {
	tx := s.db.Model(&models.IPv6Assignment{}).
		Where("subscriber_id = ? AND state = ?", subscriberID, string(expected)).
		Updates(map[string]any{
			"state":           string(a.State),
			"ipam_prefix_id":  a.IPAMPrefixID,
			"assigned_prefix": a.AssignedPrefix,
			"allocated_at":    a.AllocatedAt,
			"activated_at":    a.ActivatedAt,
			"revoked_at":      a.RevokedAt,
			"last_error":      a.LastError,
			"updated_at":      time.Now(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		// либо записи нет, либо состояние уже другое — различаем для вызывающего
		var cnt int64
		if err := s.db.Model(&models.IPv6Assignment{}).
			Where("subscriber_id = ?", subscriberID).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt == 0 {
			return lifecycle.ErrNotFound
		}
		return lifecycle.ErrConflict
	}
	return nil
}

func toDTO(m models.IPv6Assignment) lifecycle.Assignment {
	return lifecycle.Assignment{
		SubscriberID:   m.SubscriberID,
		State:          lifecycle.State(m.State),
		IPAMPrefixID:   m.IPAMPrefixID,
		AssignedPrefix: m.AssignedPrefix,
		AllocatedAt:    m.AllocatedAt,
		ActivatedAt:    m.ActivatedAt,
		RevokedAt:      m.RevokedAt,
		LastError:      m.LastError,
		UpdatedAt:      m.UpdatedAt,
	}
}
