package models

import (
	"time"

	"gorm.io/gorm"
)

// IPv6Assignment — запись о выдаче IPv6-префикса абоненту.
// Ровно одна запись на абонента; терминальные состояния не удаляются (аудит).
type IPv6Assignment struct {
	gorm.Model
	SubscriberID   string `gorm:"type:char(36);uniqueIndex"`
	State          string `gorm:"type:varchar(16);index"`
	IPAMPrefixID   string `gorm:"column:ipam_prefix_id;type:varchar(64)"`
	AssignedPrefix string `gorm:"type:varchar(64)"`

	// таймстемпы выставляются один раз при успешном переходе и не сбрасываются
	AllocatedAt *time.Time
	ActivatedAt *time.Time
	RevokedAt   *time.Time

	LastError string `gorm:"type:varchar(255)"`
}

// TableName — фиксируем имя: дефолтный нейминг спотыкается об "IPv6".
func (IPv6Assignment) TableName() string { return "ipv6_assignments" }
