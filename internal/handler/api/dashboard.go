package api

import (
	"time"

	models "SignalWatch/internal/domain/models"
	"SignalWatch/internal/usecase"
	pkgcache "SignalWatch/pkg/cache"
	xhttp "SignalWatch/pkg/http"
	xlogger "SignalWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DashboardEchoHandler exposes the live view state over HTTP.
type DashboardEchoHandler struct {
	logger  *xlogger.Logger
	monitor *usecase.Monitor
	listing *pkgcache.MemoryCache // short-TTL cache for filtered listings
}

type signalsListing struct {
	rows  []models.TradingSignal
	total int64
}

func NewDashboardEchoHandler(logger *xlogger.Logger, monitor *usecase.Monitor) *DashboardEchoHandler {
	return &DashboardEchoHandler{
		logger:  logger,
		monitor: monitor,
		listing: pkgcache.NewMemoryCache(
			pkgcache.WithMemoryMaxSize(256),
			pkgcache.WithMemoryCleanup(time.Minute),
		),
	}
}

func (h *DashboardEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.GET("/signals/:id", h.Signal)
	g.GET("/metrics", h.Metrics)
	g.GET("/market", h.Market)
	g.GET("/stats", h.Stats)
	g.GET("/status", h.Status)

	e.GET("/healthz", h.Health)
}

// Signals lists tracked signals in the order they were first seen,
// optionally filtered by symbol, direction, and market phase.
func (h *DashboardEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	offset := xhttp.ParseIntDefault(c.QueryParam("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	ctx := c.Request().Context()
	key := pkgcache.GenerateKeyWithParams("signals", req.Symbol, req.Direction, req.Phase, req.Limit, offset)
	var cached interface{}
	if err := h.listing.Get(ctx, key, &cached); err == nil {
		if l, ok := cached.(*signalsListing); ok {
			return xhttp.ListResponse(c, l.rows, l.total)
		}
	}

	all := h.monitor.State().Signals()
	rows := make([]models.TradingSignal, 0, len(all))
	skip := offset
	for _, s := range all {
		if req.Symbol != "" && s.Symbol != req.Symbol {
			continue
		}
		if req.Direction != "" && string(s.Direction) != req.Direction {
			continue
		}
		if req.Phase != "" && s.MarketPhase != req.Phase {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		rows = append(rows, s)
		if len(rows) >= req.Limit {
			break
		}
	}

	_ = h.listing.Set(ctx, key, &signalsListing{rows: rows, total: int64(len(all))}, time.Second)
	return xhttp.ListResponse(c, rows, int64(len(all)))
}

func (h *DashboardEchoHandler) Signal(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	s, ok := h.monitor.State().Signal(req.ID)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("signal %d is not tracked", req.ID))
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *DashboardEchoHandler) Metrics(c echo.Context) error {
	m := h.monitor.State().Metrics()
	if m == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no metrics snapshot received yet"))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, m)
}

func (h *DashboardEchoHandler) Market(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.monitor.State().Market())
}

func (h *DashboardEchoHandler) Stats(c echo.Context) error {
	st := h.monitor.State().Stats()
	if st == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no stats snapshot received yet"))
	}
	return xhttp.SuccessResponse(c, st)
}

// Status reports per-stream connection state plus state freshness.
func (h *DashboardEchoHandler) Status(c echo.Context) error {
	type statusResponse struct {
		Streams   map[string]models.ConnState `json:"streams"`
		Signals   int                         `json:"signals"`
		UpdatedAt time.Time                   `json:"updated_at"`
	}
	return xhttp.SuccessResponse(c, &statusResponse{
		Streams:   h.monitor.Status(),
		Signals:   len(h.monitor.State().Signals()),
		UpdatedAt: h.monitor.State().UpdatedAt(),
	})
}

func (h *DashboardEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
