package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"SignalWatch/internal/domain/models"
	drepo "SignalWatch/internal/domain/repository"
	"SignalWatch/internal/usecase"

	"github.com/labstack/echo/v4"
)

// stubStream satisfies SignalStream so a Monitor can be built without a
// live backend; state is fed to the reducer directly.
type stubStream struct{}

func (s *stubStream) Connect(context.Context)            {}
func (s *stubStream) Disconnect()                        {}
func (s *stubStream) AddHandler(drepo.MessageHandler)    {}
func (s *stubStream) RemoveHandler(drepo.MessageHandler) {}
func (s *stubStream) State() models.ConnState            { return models.StateConnected }

func newTestHandler(t *testing.T, frames ...string) *DashboardEchoHandler {
	t.Helper()
	state := usecase.NewDashboardState(nil, nil)
	for _, f := range frames {
		env, err := models.DecodeEnvelope([]byte(f))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		state.OnMessage(env)
	}
	monitor := usecase.NewMonitor(&stubStream{}, state, nil)
	return NewDashboardEchoHandler(nil, monitor)
}

type listingResponse struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type listingPage struct {
	Rows  []models.TradingSignal `json:"rows"`
	Total int64                  `json:"total"`
}

func getSignals(t *testing.T, h *DashboardEchoHandler, query string) listingResponse {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/signals"+query, nil)
	rec := httptest.NewRecorder()
	if err := h.Signals(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	var resp listingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response body: %v", err)
	}
	return resp
}

func listingOf(t *testing.T, resp listingResponse) listingPage {
	t.Helper()
	if resp.Status != http.StatusOK {
		t.Fatalf("status %d", resp.Status)
	}
	var page listingPage
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		t.Fatalf("listing payload: %v", err)
	}
	return page
}

func TestSignalsListingLimitAndOffset(t *testing.T) {
	h := newTestHandler(t,
		`{"type":"signal_update","data":{"id":1,"symbol":"BTCUSDT","direction":"long"}}`,
		`{"type":"signal_update","data":{"id":2,"symbol":"ETHUSDT","direction":"short"}}`,
		`{"type":"signal_update","data":{"id":3,"symbol":"SOLUSDT","direction":"long"}}`,
	)

	page := listingOf(t, getSignals(t, h, "?limit=1&offset=1"))
	if page.Total != 3 {
		t.Fatalf("total %d", page.Total)
	}
	if len(page.Rows) != 1 || page.Rows[0].ID != 2 {
		t.Fatalf("expected page [2], got %+v", page.Rows)
	}
}

func TestSignalsListingOffsetFallsBackToZero(t *testing.T) {
	h := newTestHandler(t,
		`{"type":"signal_update","data":{"id":1,"symbol":"BTCUSDT","direction":"long"}}`,
		`{"type":"signal_update","data":{"id":2,"symbol":"ETHUSDT","direction":"short"}}`,
	)

	// Unparseable and negative offsets both behave like offset=0.
	for _, q := range []string{"?limit=2&offset=junk", "?limit=2&offset=-5"} {
		page := listingOf(t, getSignals(t, h, q))
		if len(page.Rows) != 2 || page.Rows[0].ID != 1 {
			t.Fatalf("query %q: expected full page from start, got %+v", q, page.Rows)
		}
	}
}

func TestSignalsListingFilters(t *testing.T) {
	h := newTestHandler(t,
		`{"type":"signal_update","data":{"id":1,"symbol":"BTCUSDT","direction":"long"}}`,
		`{"type":"signal_update","data":{"id":2,"symbol":"BTCUSDT","direction":"short"}}`,
		`{"type":"signal_update","data":{"id":3,"symbol":"ETHUSDT","direction":"long"}}`,
	)

	page := listingOf(t, getSignals(t, h, "?symbol=BTCUSDT&direction=long"))
	if len(page.Rows) != 1 || page.Rows[0].ID != 1 {
		t.Fatalf("expected [1], got %+v", page.Rows)
	}
}

func TestSignalsListingRejectsBadDirection(t *testing.T) {
	h := newTestHandler(t)

	resp := getSignals(t, h, "?direction=sideways")
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 envelope, got %d", resp.Status)
	}
}
