package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/vitos/trade_alert_relay/internal/domain"
	"github.com/vitos/trade_alert_relay/internal/usecase"
	"go.uber.org/zap"
)

// InstrumentRelay is the slice of the instrument engine the handlers
// drive.
type InstrumentRelay interface {
	BullishEntry(ctx context.Context, price decimal.Decimal, target50 string) bool
	BearishEntry(ctx context.Context, price decimal.Decimal, target50 string) bool
	HalfTarget(ctx context.Context, quantity int)
	Exit(ctx context.Context)
	SetTrend(trend string) (usecase.Trend, error)
	Trend() usecase.Trend
}

// AlertRelay feeds raw alert text through the signal pipeline.
type AlertRelay interface {
	ProcessText(ctx context.Context, text string, source domain.Source) (domain.SignalKind, bool)
}

type Server struct {
	router *http.ServeMux
	server *http.Server
	gold   InstrumentRelay
	nq     InstrumentRelay
	relay  AlertRelay
	store  domain.PositionStore
	logger *zap.Logger
}

func NewServer(
	port int,
	gold InstrumentRelay,
	nq InstrumentRelay,
	relay AlertRelay,
	store domain.PositionStore,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router: http.NewServeMux(),
		gold:   gold,
		nq:     nq,
		relay:  relay,
		store:  store,
		logger: logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Instrument entry relays
	s.router.HandleFunc("POST /gold", s.handleGold)
	s.router.HandleFunc("POST /nq", s.handleNQ)

	// Trend side channel
	s.router.HandleFunc("POST /gold-trend", s.handleGoldTrend)

	// Generic alert relay
	s.router.HandleFunc("POST /fbd", s.handleFBD)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
