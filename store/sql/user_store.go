package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	ID          int64
	Email       string
	ReceiveNews bool
	UpdatedAt   time.Time
}

type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &UserStore{db: db}, nil
}

func (s *UserStore) Create(ctx context.Context, email string, receiveNews bool) (User, error) {
	if s == nil || s.db == nil {
		return User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	record := &userRecord{
		Email:       strings.TrimSpace(email),
		ReceiveNews: receiveNews,
		UpdatedAt:   time.Now().UTC(),
	}
	if _, err := IDB(ctx, s.db).NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return User{}, err
	}
	return userFromRecord(*record), nil
}

func (s *UserStore) Get(ctx context.Context, id int64) (User, error) {
	if s == nil || s.db == nil {
		return User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	record := new(userRecord)
	err := IDB(ctx, s.db).NewSelect().Model(record).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, notFound("user", id)
	}
	if err != nil {
		return User{}, err
	}
	return userFromRecord(*record), nil
}

// UpdateReceiveNews sets the newsletter consent flag of one user.
func (s *UserStore) UpdateReceiveNews(ctx context.Context, userID int64, receiveNews bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: user store is not configured")
	}
	if userID <= 0 {
		return fmt.Errorf("sqlstore: user id is required")
	}
	res, err := IDB(ctx, s.db).NewUpdate().
		Model((*userRecord)(nil)).
		Set("receive_news = ?", receiveNews).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affErr := res.RowsAffected(); affErr == nil && affected == 0 {
		return notFound("user", userID)
	}
	return nil
}

func userFromRecord(record userRecord) User {
	return User{
		ID:          record.ID,
		Email:       record.Email,
		ReceiveNews: record.ReceiveNews,
		UpdatedAt:   record.UpdatedAt,
	}
}
