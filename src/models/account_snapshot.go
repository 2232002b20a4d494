package models

import (
	"time"
)

// AccountSnapshot is a point-in-time record of an account's cash and equity.
type AccountSnapshot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	AccountID string    `gorm:"column:account_id;type:text;not null" json:"account_id"`
	Name      string    `gorm:"column:name;type:text;not null;index" json:"name"`
	Cash      float64   `gorm:"column:cash;type:numeric;not null" json:"cash"`
	Equity    float64   `gorm:"column:equity;type:numeric;not null" json:"equity"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;not null" json:"created_at"`
}
