package models

import (
	"time"

	"gorm.io/gorm"
)

// RadiusSession — живая PPPoE/IPoE-сессия абонента по данным аккаунтинга.
// Обновляется фидом Accounting-Start/Interim, удаляется по Accounting-Stop.
type RadiusSession struct {
	gorm.Model
	SubscriberID  string `gorm:"type:char(36);uniqueIndex"`
	Username      string `gorm:"index"`
	AcctSessionID string `gorm:"column:acct_session_id;type:varchar(64);index"`
	NASAddress    string `gorm:"column:nas_address;type:varchar(45)"`
	StartedAt     time.Time
}
