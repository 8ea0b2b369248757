package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/foodorder/pkg/config"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PaymentSession is one checkout session issued by the payment provider.
type PaymentSession struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   string          `gorm:"type:varchar(24);not null;index" json:"order_id"`
	SessionID string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"session_id"`
	URL       string          `gorm:"type:text" json:"url"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency  string          `gorm:"type:varchar(8);not null" json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

func (PaymentSession) TableName() string {
	return "payment_sessions"
}

// PaymentConfirmation records every confirmation the order service applied,
// whichever channel it arrived on.
type PaymentConfirmation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   string    `gorm:"type:varchar(24);not null;index" json:"order_id"`
	Source    string    `gorm:"type:varchar(16);not null" json:"source"`
	Success   bool      `gorm:"not null" json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

func (PaymentConfirmation) TableName() string {
	return "payment_confirmations"
}

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(cfg *config.MySQLConfig) (*LedgerRepository, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.AutoMigrate(&PaymentSession{}, &PaymentConfirmation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &LedgerRepository{db: db}, nil
}

func (l *LedgerRepository) RecordSession(ctx context.Context, session *PaymentSession) error {
	return l.db.WithContext(ctx).Create(session).Error
}

func (l *LedgerRepository) RecordConfirmation(ctx context.Context, confirmation *PaymentConfirmation) error {
	return l.db.WithContext(ctx).Create(confirmation).Error
}

func (l *LedgerRepository) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (l *LedgerRepository) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
