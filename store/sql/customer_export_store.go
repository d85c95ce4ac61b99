package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crm/exports"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CustomerExportStore struct {
	db      *bun.DB
	repo    repository.Repository[*customerExportRecord]
	builder *exports.Builder

	defaultPerPage int
	maxPerPage     int
}

type CustomerExportOption func(*CustomerExportStore)

func WithExportBuilder(builder *exports.Builder) CustomerExportOption {
	return func(s *CustomerExportStore) {
		if builder != nil {
			s.builder = builder
		}
	}
}

func WithExportPageSizes(defaultPerPage int, maxPerPage int) CustomerExportOption {
	return func(s *CustomerExportStore) {
		s.defaultPerPage = defaultPerPage
		s.maxPerPage = maxPerPage
	}
}

func NewCustomerExportStore(db *bun.DB, opts ...CustomerExportOption) (*CustomerExportStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*customerExportRecord](db, customerExportHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid customer export repository wiring: %w", err)
		}
	}
	store := &CustomerExportStore{
		db:             db,
		repo:           repo,
		builder:        exports.NewBuilder(),
		defaultPerPage: exports.DefaultPerPage,
		maxPerPage:     exports.MaxPerPage,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *CustomerExportStore) Create(ctx context.Context, export exports.CustomerExport) (exports.CustomerExport, error) {
	if s == nil || s.repo == nil {
		return exports.CustomerExport{}, fmt.Errorf("sqlstore: customer export store is not configured")
	}
	if export.CustomerID <= 0 {
		return exports.CustomerExport{}, fmt.Errorf("sqlstore: customer id is required")
	}
	now := time.Now().UTC()
	record := &customerExportRecord{
		ID:              strings.TrimSpace(export.ID),
		CustomerID:      export.CustomerID,
		ExportType:      strings.TrimSpace(export.ExportType),
		Category:        strings.TrimSpace(export.Category),
		Status:          strings.TrimSpace(export.Status),
		City:            strings.TrimSpace(export.City),
		CreatedAt:       export.CreatedAt.UTC(),
		UpdatedAt:       export.UpdatedAt.UTC(),
		StatusChangedAt: cloneUTC(export.StatusChangedAt),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if export.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if export.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	var (
		created *customerExportRecord
		err     error
	)
	if tx, ok := TxFromContext(ctx); ok {
		created, err = s.repo.CreateTx(ctx, tx, record)
	} else {
		created, err = s.repo.Create(ctx, record)
	}
	if err != nil {
		return exports.CustomerExport{}, err
	}
	return exportFromRecord(*created), nil
}

// List applies the export filters and returns one page.
func (s *CustomerExportStore) List(ctx context.Context, req exports.Request) (exports.Page, error) {
	if s == nil || s.repo == nil {
		return exports.Page{}, fmt.Errorf("sqlstore: customer export store is not configured")
	}
	req = req.Normalize(s.defaultPerPage, s.maxPerPage)
	selectors, err := s.builder.Criteria(req.Filters)
	if err != nil {
		return exports.Page{}, err
	}
	offset := req.Offset()
	selectors = append(selectors, repository.SelectPaginate(req.PerPage, offset))

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return exports.Page{}, err
	}
	items := make([]exports.CustomerExport, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		items = append(items, exportFromRecord(*record))
	}
	return exports.Page{
		Items:   items,
		Page:    req.Page,
		PerPage: req.PerPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

func exportFromRecord(record customerExportRecord) exports.CustomerExport {
	return exports.CustomerExport{
		ID:              record.ID,
		CustomerID:      record.CustomerID,
		ExportType:      record.ExportType,
		Category:        record.Category,
		Status:          record.Status,
		City:            record.City,
		CreatedAt:       record.CreatedAt.UTC(),
		UpdatedAt:       record.UpdatedAt.UTC(),
		StatusChangedAt: cloneUTC(record.StatusChangedAt),
	}
}

func cloneUTC(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
