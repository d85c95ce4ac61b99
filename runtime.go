package crm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goliatone/go-crm/adapters/gocommand"
	"github.com/goliatone/go-crm/adapters/gojob"
	"github.com/goliatone/go-crm/adapters/gologger"
	"github.com/goliatone/go-crm/command"
	"github.com/goliatone/go-crm/core"
	"github.com/goliatone/go-crm/exponea"
	"github.com/goliatone/go-crm/exports"
	"github.com/goliatone/go-crm/httpapi"
	"github.com/goliatone/go-crm/inbound"
	"github.com/goliatone/go-crm/jobs"
	"github.com/goliatone/go-crm/metrics"
	"github.com/goliatone/go-crm/query"
	sqlstore "github.com/goliatone/go-crm/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	metricsHandler http.Handler
	cache          repositorycache.CacheService
	claims         inbound.ClaimStore
	bus            *gocommand.Bus
}

func WithLogger(logger core.Logger) Option {
	return func(o *runtimeOptions) { o.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *runtimeOptions) { o.loggerProvider = provider }
}

// WithMetrics replaces the default Prometheus recorder. The /metrics route
// is only mounted when handler is not nil.
func WithMetrics(recorder core.MetricsRecorder, handler http.Handler) Option {
	return func(o *runtimeOptions) {
		o.metrics = recorder
		o.metricsHandler = handler
	}
}

func WithCacheService(cache repositorycache.CacheService) Option {
	return func(o *runtimeOptions) { o.cache = cache }
}

func WithClaimStore(store inbound.ClaimStore) Option {
	return func(o *runtimeOptions) { o.claims = store }
}

func WithCommandBus(bus *gocommand.Bus) Option {
	return func(o *runtimeOptions) { o.bus = bus }
}

type Commands struct {
	TicketWebhook  *command.TicketWebhookCommand
	ConsentWebhook *command.ConsentWebhookCommand
}

type Queries struct {
	ListCustomerExports *query.ListCustomerExportsQuery
	GetJob              *query.GetJobQuery
}

// Runtime is the assembled CRM process: stores, webhook processors, the
// inbound dispatcher, the job worker and the HTTP router.
type Runtime struct {
	Config     core.Config
	Stores     *sqlstore.RepositoryFactory
	Admins     *sqlstore.CachedAdminDirectory
	Tickets    *exponea.TicketWebhookProcessor
	Consent    *exponea.ConsentWebhookProcessor
	Dispatcher *inbound.Dispatcher
	Worker     *jobs.Worker
	Router     http.Handler
	Commands   Commands
	Queries    Queries

	logger core.Logger
	bus    *gocommand.Bus
}

// NewRuntime wires the CRM on top of a migrated persistence client.
func NewRuntime(cfg core.Config, client *persistence.Client, opts ...Option) (*Runtime, error) {
	if client == nil {
		return nil, core.InternalError("crm: persistence client is required", nil)
	}
	return NewRuntimeFromDB(cfg, client.DB(), opts...)
}

func NewRuntimeFromDB(cfg core.Config, db *bun.DB, opts ...Option) (*Runtime, error) {
	if db == nil {
		return nil, core.InternalError("crm: bun db is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, core.BadInputError(err.Error(), nil)
	}
	options := runtimeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.metrics == nil {
		recorder := metrics.NewRecorder()
		options.metrics = recorder
		options.metricsHandler = recorder.Handler()
	}
	options.metrics = core.WithStaticTags(options.metrics, map[string]string{"service": cfg.ServiceName})
	loggers := gologger.Components(cfg.ServiceName, options.loggerProvider, options.logger,
		"runtime", "exponea", "jobs", "http")

	loc, err := cfg.Exports.Location()
	if err != nil {
		return nil, core.BadInputError(err.Error(), nil)
	}
	stores, err := sqlstore.NewRepositoryFactoryFromDB(db,
		sqlstore.WithExportBuilder(exports.NewBuilder(exports.WithLocation(loc))),
		sqlstore.WithExportPageSizes(cfg.Exports.DefaultPerPage, cfg.Exports.MaxPerPage),
	)
	if err != nil {
		return nil, core.WrapInternal(err, "crm: build stores")
	}

	cacheService := options.cache
	if cacheService == nil {
		cacheService, err = repositorycache.NewCacheService(repositorycache.DefaultConfig())
		if err != nil {
			return nil, core.WrapInternal(err, "crm: build cache service")
		}
	}
	admins, err := sqlstore.NewCachedAdminDirectory(stores.AdminUserStore(), cacheService)
	if err != nil {
		return nil, core.WrapInternal(err, "crm: build admin directory")
	}

	deps := exponea.Dependencies{
		Enqueuer:   gojob.NewEnqueuerAdapter(stores.JobStore()),
		Admins:     admins,
		Coupons:    stores.CouponStore(),
		Transactor: stores.Transactor(),
		Logger:     loggers["exponea"],
		Metrics:    options.metrics,
		BatchSize:  cfg.Webhooks.TicketBatchSize,
	}
	tickets, err := exponea.NewTicketWebhookProcessor(deps)
	if err != nil {
		return nil, err
	}
	consent, err := exponea.NewConsentWebhookProcessor(deps)
	if err != nil {
		return nil, err
	}

	claims := options.claims
	if claims == nil {
		claims = inbound.NewMemoryClaimStore()
	}
	dispatcher := inbound.NewDispatcher(inbound.TokenVerifier{Token: cfg.Webhooks.Token}, claims)
	if ttl := cfg.Webhooks.IdempotencyWindow(); ttl > 0 {
		dispatcher.KeyTTL = ttl
	}
	if err := inbound.RegisterExponea(dispatcher, tickets, consent); err != nil {
		return nil, err
	}

	policy := gojob.RetryPolicy{
		MaxAttempts:     cfg.Jobs.MaxAttempts,
		MaxDelay:        cfg.Jobs.MaxRetryDelay(),
		DeadLetterOnMax: true,
	}
	registry, err := jobs.DefaultRegistry(stores.UserTicketStore(), stores.UserStore())
	if err != nil {
		return nil, core.WrapInternal(err, "crm: build job registry")
	}
	worker, err := jobs.NewWorker(
		gojob.NewDequeuerAdapter(stores.JobStore(), policy),
		registry,
		jobs.WithPollInterval(cfg.Jobs.PollEvery()),
		jobs.WithBatchSize(cfg.Jobs.BatchSize),
		jobs.WithMaxAttempts(cfg.Jobs.MaxAttempts),
		jobs.WithLogger(loggers["jobs"]),
		jobs.WithHook(gojob.NewWorkerHookAdapter(jobs.NewObserverHook(loggers["jobs"], options.metrics))),
	)
	if err != nil {
		return nil, core.WrapInternal(err, "crm: build job worker")
	}

	router, err := httpapi.NewRouter(httpapi.Options{
		Dispatcher:     dispatcher,
		Exports:        stores.ExportLister(),
		Logger:         loggers["http"],
		Metrics:        options.metrics,
		MetricsHandler: options.metricsHandler,
		Ready:          func(ctx context.Context) error { return db.PingContext(ctx) },
	})
	if err != nil {
		return nil, err
	}

	bus := options.bus
	if bus == nil {
		if bus, err = gocommand.NewBus(nil); err != nil {
			return nil, core.WrapInternal(err, "crm: build command bus")
		}
	}
	return &Runtime{
		Config:     cfg,
		Stores:     stores,
		Admins:     admins,
		Tickets:    tickets,
		Consent:    consent,
		Dispatcher: dispatcher,
		Worker:     worker,
		Router:     router,
		Commands: Commands{
			TicketWebhook:  command.NewTicketWebhookCommand(tickets),
			ConsentWebhook: command.NewConsentWebhookCommand(consent),
		},
		Queries: Queries{
			ListCustomerExports: query.NewListCustomerExportsQuery(stores.ExportLister()),
			GetJob:              query.NewGetJobQuery(stores.JobStore()),
		},
		logger: loggers["runtime"],
		bus:    bus,
	}, nil
}

// RegisterMessages subscribes the CRM commands and queries on the go-command
// dispatcher. Commands are mirrored into the go-job queue registry.
func (r *Runtime) RegisterMessages() error {
	if r == nil || r.bus == nil {
		return core.InternalError("crm: runtime is not configured", nil)
	}
	steps := []func() error{
		func() error { return gocommand.Handle[command.TicketWebhookMessage](r.bus, r.Commands.TicketWebhook) },
		func() error { return gocommand.Handle[command.ConsentWebhookMessage](r.bus, r.Commands.ConsentWebhook) },
		func() error { return gocommand.Serve[query.ListCustomerExportsMessage, exports.Page](r.bus, r.Queries.ListCustomerExports) },
		func() error { return gocommand.Serve[query.GetJobMessage, sqlstore.JobRecord](r.bus, r.Queries.GetJob) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			r.bus.Close()
			return fmt.Errorf("crm: register messages: %w", err)
		}
	}
	if err := r.bus.Initialize(); err != nil {
		r.bus.Close()
		return fmt.Errorf("crm: initialize command registry: %w", err)
	}
	r.logger.Info("crm messages registered", "subscriptions", r.bus.Len())
	return nil
}

// QueuedCommand reports whether a message type was mirrored into the go-job
// queue registry.
func (r *Runtime) QueuedCommand(messageType string) bool {
	if r == nil {
		return false
	}
	return r.bus.Queued(messageType)
}

// HandleTicketWebhook runs a ticket payload through the go-command bus.
func (r *Runtime) HandleTicketWebhook(ctx context.Context, msg command.TicketWebhookMessage) (bool, error) {
	return gocommand.DispatchResult[command.TicketWebhookMessage, bool](ctx, msg)
}

func (r *Runtime) HandleConsentWebhook(ctx context.Context, msg command.ConsentWebhookMessage) (jobs.Handle, error) {
	return gocommand.DispatchResult[command.ConsentWebhookMessage, jobs.Handle](ctx, msg)
}

func (r *Runtime) ListCustomerExports(ctx context.Context, req exports.Request) (exports.Page, error) {
	return gocommand.Query[query.ListCustomerExportsMessage, exports.Page](ctx, query.ListCustomerExportsMessage{Request: req})
}

// RunWorker drains the job table until ctx is done.
func (r *Runtime) RunWorker(ctx context.Context) error {
	if r == nil || r.Worker == nil {
		return core.InternalError("crm: job worker is not configured", nil)
	}
	return r.Worker.Run(ctx)
}

// Close releases command subscriptions.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	r.bus.Close()
}
