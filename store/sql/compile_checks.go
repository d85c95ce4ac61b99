package sqlstore

import (
	"github.com/goliatone/go-crm/exports"
	"github.com/goliatone/go-crm/jobs"
	"github.com/goliatone/go-crm/service"
	"github.com/goliatone/go-job/queue"
)

var (
	_ service.Transactor = (*Transactor)(nil)
	_ queue.Enqueuer     = (*JobStore)(nil)
	_ queue.Dequeuer     = (*JobStore)(nil)
	_ queue.Delivery     = (*jobDelivery)(nil)
	_ jobs.TicketWriter  = (*UserTicketStore)(nil)
	_ jobs.ConsentWriter = (*UserStore)(nil)
	_ exports.Lister     = (*CustomerExportStore)(nil)
	_ robotLookup        = (*AdminUserStore)(nil)
	_ robotLookup        = (*CachedAdminDirectory)(nil)
)
