package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-crm/exports"
	sqlstore "github.com/goliatone/go-crm/store/sql"
)

type JobReader interface {
	GetByIdempotencyKey(ctx context.Context, key string) (sqlstore.JobRecord, error)
}

type ListCustomerExportsQuery struct {
	lister exports.Lister
}

func NewListCustomerExportsQuery(lister exports.Lister) *ListCustomerExportsQuery {
	return &ListCustomerExportsQuery{lister: lister}
}

func (q *ListCustomerExportsQuery) Query(ctx context.Context, msg ListCustomerExportsMessage) (exports.Page, error) {
	if q == nil || q.lister == nil {
		return exports.Page{}, queryDependencyError("query: customer export lister is required")
	}
	return q.lister.List(ctx, msg.Request)
}

type GetJobQuery struct {
	reader JobReader
}

func NewGetJobQuery(reader JobReader) *GetJobQuery {
	return &GetJobQuery{reader: reader}
}

func (q *GetJobQuery) Query(ctx context.Context, msg GetJobMessage) (sqlstore.JobRecord, error) {
	if q == nil || q.reader == nil {
		return sqlstore.JobRecord{}, queryDependencyError("query: job reader is required")
	}
	return q.reader.GetByIdempotencyKey(ctx, strings.TrimSpace(msg.IdempotencyKey))
}
