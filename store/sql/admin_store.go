package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

type AdminUserStore struct {
	db *bun.DB
}

func NewAdminUserStore(db *bun.DB) (*AdminUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &AdminUserStore{db: db}, nil
}

func (s *AdminUserStore) Create(ctx context.Context, email string, robot bool) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: admin user store is not configured")
	}
	record := &adminUserRecord{Email: strings.TrimSpace(email), Robot: robot}
	if _, err := IDB(ctx, s.db).NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return 0, err
	}
	return record.ID, nil
}

// RobotID returns the lowest id flagged as the system robot.
func (s *AdminUserStore) RobotID(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: admin user store is not configured")
	}
	record := new(adminUserRecord)
	err := IDB(ctx, s.db).NewSelect().
		Model(record).
		Where("robot = ?", true).
		Order("id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, notFound("robot admin user", "robot")
	}
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}
