package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crm/exports"
	sqlstore "github.com/goliatone/go-crm/store/sql"
)

var (
	_ gocmd.Querier[ListCustomerExportsMessage, exports.Page] = (*ListCustomerExportsQuery)(nil)
	_ gocmd.Querier[GetJobMessage, sqlstore.JobRecord]        = (*GetJobQuery)(nil)
	_ JobReader                                               = (*sqlstore.JobStore)(nil)
)
