package crm_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	crm "github.com/goliatone/go-crm"
	"github.com/goliatone/go-crm/adapters/gocommand"
	"github.com/goliatone/go-crm/command"
	"github.com/goliatone/go-crm/core"
	"github.com/goliatone/go-crm/exports"
	"github.com/goliatone/go-crm/migrations"
	"github.com/goliatone/go-crm/query"
	sqlstore "github.com/goliatone/go-crm/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const testToken = "hook-secret"

func TestRuntime_TicketWebhookToUserTickets(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	robotID, couponID, users := seed(t, rt, 3)

	body := fmt.Sprintf(`{"coupon_id":%d,"user_ids":[%d,%d,%d],"reason":"promo"}`, couponID, users[0], users[1], users[2])
	rec := postWebhook(t, rt, "ticket", body, "evt-ticket-1")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	processed, err := rt.Worker.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected one ticket batch job, got %d", processed)
	}
	for _, userID := range users {
		tickets, err := rt.Stores.UserTicketStore().ListByUser(ctx, userID)
		if err != nil {
			t.Fatalf("list tickets: %v", err)
		}
		if len(tickets) != 1 || tickets[0].AdminUserID != robotID || tickets[0].CouponID != couponID {
			t.Fatalf("unexpected tickets for user %d: %+v", userID, tickets)
		}
	}

	redelivery := postWebhook(t, rt, "ticket", body, "evt-ticket-1")
	if redelivery.Code != http.StatusOK {
		t.Fatalf("expected 200 for deduped redelivery, got %d", redelivery.Code)
	}
	if processed, _ := rt.Worker.Drain(ctx); processed != 0 {
		t.Fatalf("expected no new jobs after redelivery, got %d", processed)
	}
}

func TestRuntime_TicketWebhookValidation(t *testing.T) {
	rt := newRuntime(t)
	_, couponID, _ := seed(t, rt, 1)

	rec := postWebhook(t, rt, "ticket", fmt.Sprintf(`{"coupon_id":%d,"user_ids":[],"reason":""}`, couponID+10), "evt-bad-1")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown coupon, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"coupon_id"`) {
		t.Fatalf("expected coupon_id field error, got %s", rec.Body.String())
	}
}

func TestRuntime_ConsentWebhookUpdatesUser(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	_, _, users := seed(t, rt, 1)

	rec := postWebhook(t, rt, "consent", fmt.Sprintf(`{"action_name":"update_consent","id":%d,"receive_news":true}`, users[0]), "evt-consent-1")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, err := rt.Worker.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	user, err := rt.Stores.UserStore().Get(ctx, users[0])
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.ReceiveNews {
		t.Fatalf("expected receive_news to be set")
	}

	unsupported := postWebhook(t, rt, "consent", fmt.Sprintf(`{"action_name":"unsubscribe","id":%d}`, users[0]), "evt-consent-2")
	if unsupported.Code != http.StatusNotImplemented {
		t.Fatalf("expected unsupported action to fail, got %d", unsupported.Code)
	}
	if !strings.Contains(unsupported.Body.String(), "not_implimented") {
		t.Fatalf("expected not_implimented code, got %s", unsupported.Body.String())
	}
}

func TestRuntime_RejectsMissingToken(t *testing.T) {
	rt := newRuntime(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/exponea/ticket", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	rt.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRuntime_CommandBusAndQueries(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	_, _, users := seed(t, rt, 1)
	if err := rt.RegisterMessages(); err != nil {
		t.Fatalf("register messages: %v", err)
	}
	t.Cleanup(rt.Close)

	if !rt.QueuedCommand(command.TypeConsentWebhook) {
		t.Fatalf("expected consent command mirrored into queue registry")
	}
	if rt.QueuedCommand(query.GetJobMessage{}.Type()) {
		t.Fatalf("expected queries kept out of queue registry")
	}
	handle, err := rt.HandleConsentWebhook(ctx, command.ConsentWebhookMessage{
		Data:        map[string]any{"action_name": "update_consent", "id": users[0], "receive_news": false},
		DeliveryKey: "bus-1",
	})
	if err != nil {
		t.Fatalf("consent command: %v", err)
	}
	if handle.ID == "" {
		t.Fatalf("expected job handle, got %+v", handle)
	}

	record, err := gocommand.Query[query.GetJobMessage, sqlstore.JobRecord](ctx, query.GetJobMessage{IdempotencyKey: "bus-1:consent"})
	if err != nil {
		t.Fatalf("get job query: %v", err)
	}
	if record.Status != sqlstore.JobStatusPending {
		t.Fatalf("expected pending job, got %q", record.Status)
	}

	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	if _, err := rt.Stores.CustomerExportStore().Create(ctx, exports.CustomerExport{
		CustomerID: users[0],
		ExportType: "csv",
		Category:   "orders",
		Status:     "done",
		City:       "Berlin",
		CreatedAt:  created,
		UpdatedAt:  created,
	}); err != nil {
		t.Fatalf("create export: %v", err)
	}
	filters := exports.NewParams()
	filters.Set("city", exports.Text("Berlin"))
	page, err := rt.ListCustomerExports(ctx, exports.Request{Filters: filters})
	if err != nil {
		t.Fatalf("list exports: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected one export, got %+v", page)
	}
}

func TestRuntime_HealthAndMetrics(t *testing.T) {
	rt := newRuntime(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		rt.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestNewRuntime_RequiresClient(t *testing.T) {
	if _, err := crm.NewRuntime(core.DefaultConfig(), nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
	cfg := core.DefaultConfig()
	cfg.ServiceName = ""
	if _, err := crm.NewRuntimeFromDB(cfg, nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func postWebhook(t *testing.T, rt *crm.Runtime, event, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/exponea/"+event, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Token", testToken)
	req.Header.Set("Idempotency-Key", key)
	rec := httptest.NewRecorder()
	rt.Router.ServeHTTP(rec, req)
	if rec.Code == http.StatusAccepted {
		var payload map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode webhook response: %v", err)
		}
		if payload["accepted"] != true {
			t.Fatalf("expected accepted payload, got %v", payload)
		}
	}
	return rec
}

func seed(t *testing.T, rt *crm.Runtime, count int) (int64, int64, []int64) {
	t.Helper()
	ctx := context.Background()
	robotID, err := rt.Stores.AdminUserStore().Create(ctx, "robot@example.com", true)
	if err != nil {
		t.Fatalf("create robot: %v", err)
	}
	couponID, err := rt.Stores.CouponStore().Create(ctx, "WELCOME", true)
	if err != nil {
		t.Fatalf("create coupon: %v", err)
	}
	users := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		user, err := rt.Stores.UserStore().Create(ctx, fmt.Sprintf("user%d@example.com", i), false)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		users = append(users, user.ID)
	}
	return robotID, couponID, users
}

func newRuntime(t *testing.T) *crm.Runtime {
	t.Helper()
	dsn := fmt.Sprintf("file:crm-runtime-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	cfg := core.DefaultConfig()
	cfg.Database.DSN = dsn
	cfg.Webhooks.Token = testToken
	client, err := persistence.New(cfg.Database, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if _, err := migrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect == migrations.DialectSQLite {
			client.RegisterSQLMigrations(fsys)
		}
		return nil
	}, migrations.WithValidationTargets(migrations.DialectSQLite)); err != nil {
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rt, err := crm.NewRuntime(cfg, client)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	return rt
}
