package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

type CouponStore struct {
	db *bun.DB
}

func NewCouponStore(db *bun.DB) (*CouponStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &CouponStore{db: db}, nil
}

func (s *CouponStore) Create(ctx context.Context, code string, active bool) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: coupon store is not configured")
	}
	record := &couponRecord{Code: strings.TrimSpace(code), Active: active}
	if _, err := IDB(ctx, s.db).NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return 0, err
	}
	return record.ID, nil
}

// CouponExists reports whether an active coupon with id exists.
func (s *CouponStore) CouponExists(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: coupon store is not configured")
	}
	return IDB(ctx, s.db).NewSelect().
		Model((*couponRecord)(nil)).
		Where("id = ?", id).
		Where("active = ?", true).
		Exists(ctx)
}
