package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountRow struct {
	ID        string          `gorm:"column:id;primaryKey;type:varchar(64);not null"`
	Balance   decimal.Decimal `gorm:"column:balance;type:decimal(20,4);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (AccountRow) TableName() string {
	return "bank_accounts"
}
