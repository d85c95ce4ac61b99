package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type customerExportRecord struct {
	bun.BaseModel `bun:"table:customer_exports,alias:ce"`

	ID              string     `bun:"id,pk"`
	CustomerID      int64      `bun:"customer_id,notnull"`
	ExportType      string     `bun:"export_type,notnull"`
	Category        string     `bun:"category,notnull"`
	Status          string     `bun:"status,notnull"`
	City            string     `bun:"city,notnull"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	StatusChangedAt *time.Time `bun:"status_changed_at,nullzero"`
}

type jobRecord struct {
	bun.BaseModel `bun:"table:crm_jobs,alias:cj"`

	ID             string         `bun:"id,pk"`
	JobID          string         `bun:"job_id,notnull"`
	Payload        map[string]any `bun:"payload,type:jsonb,notnull"`
	IdempotencyKey string         `bun:"idempotency_key,notnull,unique"`
	Status         string         `bun:"status,notnull"`
	Attempts       int            `bun:"attempts,notnull"`
	RunAt          time.Time      `bun:"run_at,notnull"`
	LastError      string         `bun:"last_error"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Email       string    `bun:"email,notnull"`
	ReceiveNews bool      `bun:"receive_news,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type adminUserRecord struct {
	bun.BaseModel `bun:"table:admin_users,alias:au"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Email string `bun:"email,notnull"`
	Robot bool   `bun:"robot,notnull"`
}

type couponRecord struct {
	bun.BaseModel `bun:"table:coupons,alias:cp"`

	ID     int64  `bun:"id,pk,autoincrement"`
	Code   string `bun:"code,notnull"`
	Active bool   `bun:"active,notnull"`
}

type userTicketRecord struct {
	bun.BaseModel `bun:"table:user_tickets,alias:ut"`

	ID          string    `bun:"id,pk"`
	UserID      int64     `bun:"user_id,notnull"`
	CouponID    int64     `bun:"coupon_id,notnull"`
	AdminUserID int64     `bun:"admin_user_id,notnull"`
	Reason      string    `bun:"reason,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
