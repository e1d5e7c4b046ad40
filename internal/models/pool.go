package models

import "gorm.io/gorm"

// PoolPrefix — занятый дочерний префикс встроенного пула (режим без NetBox).
type PoolPrefix struct {
	gorm.Model
	Prefix       string `gorm:"type:varchar(64);uniqueIndex"`
	SubscriberID string `gorm:"type:char(36);index"`
}
