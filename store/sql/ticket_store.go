package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crm/jobs"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UserTicketStore struct {
	db   *bun.DB
	repo repository.Repository[*userTicketRecord]
}

func NewUserTicketStore(db *bun.DB) (*UserTicketStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userTicketRecord](db, userTicketHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user ticket repository wiring: %w", err)
		}
	}
	return &UserTicketStore{db: db, repo: repo}, nil
}

// CreateTickets inserts every ticket or none.
func (s *UserTicketStore) CreateTickets(ctx context.Context, tickets []jobs.UserTicket) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: user ticket store is not configured")
	}
	if len(tickets) == 0 {
		return nil
	}
	insert := func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		for _, ticket := range tickets {
			record := &userTicketRecord{
				ID:          uuid.NewString(),
				UserID:      ticket.UserID,
				CouponID:    ticket.CouponID,
				AdminUserID: ticket.AdminUserID,
				Reason:      strings.TrimSpace(ticket.Reason),
				CreatedAt:   now,
			}
			if _, err := s.repo.CreateTx(ctx, tx, record); err != nil {
				return fmt.Errorf("sqlstore: create ticket for user %d: %w", ticket.UserID, err)
			}
		}
		return nil
	}
	if tx, ok := TxFromContext(ctx); ok {
		return insert(ctx, tx)
	}
	return s.db.RunInTx(ctx, nil, insert)
}

func (s *UserTicketStore) ListByUser(ctx context.Context, userID int64) ([]jobs.UserTicket, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: user ticket store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.user_id = ?", userID)
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]jobs.UserTicket, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		out = append(out, jobs.UserTicket{
			UserID:      record.UserID,
			CouponID:    record.CouponID,
			AdminUserID: record.AdminUserID,
			Reason:      record.Reason,
		})
	}
	return out, nil
}
