package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDispatchCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncNotificationCreated()
	metrics.IncNotificationCreated()
	metrics.IncDeliverySent()
	metrics.IncDeliveryFailed("Gateway")
	metrics.IncDeliveryFailed("")
	metrics.IncDeliverySkipped()
	metrics.ObserveDeliveryDuration(120 * time.Millisecond)
	metrics.IncLedgerPersistFailure("append")
	metrics.SetLedgerRecords(7)
	metrics.IncSoundRefresh(true)
	metrics.IncSoundRefresh(false)

	if got := testutil.ToFloat64(metrics.notificationsCreated); got != 2 {
		t.Fatalf("notifications_created_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("sent", "")); got != 1 {
		t.Fatalf("gateway_deliveries_total{sent} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("failed", "gateway")); got != 1 {
		t.Fatalf("gateway_deliveries_total{failed,gateway} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("failed", "unknown")); got != 1 {
		t.Fatalf("gateway_deliveries_total{failed,unknown} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("skipped", "disabled")); got != 1 {
		t.Fatalf("gateway_deliveries_total{skipped} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ledgerPersistFailures.WithLabelValues("append")); got != 1 {
		t.Fatalf("ledger_persist_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ledgerRecords); got != 7 {
		t.Fatalf("ledger_records = %v, want 7", got)
	}
	if got := testutil.ToFloat64(metrics.soundRefreshTotal.WithLabelValues("failure")); got != 1 {
		t.Fatalf("sound_catalog_refresh_total{failure} = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncNotificationCreated()
	metrics.IncDeliveryFailed("x")
	metrics.SetLedgerRecords(1)
	if metrics.Handler() == nil {
		t.Fatal("Handler() should fall back to the default handler")
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
