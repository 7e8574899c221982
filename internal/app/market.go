package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopherbazaar.com/internal/bank"
	"gopherbazaar.com/internal/feed"
	"gopherbazaar.com/internal/httpapi"
	"gopherbazaar.com/internal/market"
	"gopherbazaar.com/internal/ws"
	"gopherbazaar.com/pkg/bootstrap"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/trace"
)

// MarketServer owns every long-lived part of the market process.
type MarketServer struct {
	cfg MarketServerConfig

	ledger      bank.Service
	closeLedger func() error
	journal     *market.WALJournal
	broker      feed.Broker
	gateway     *market.Gateway
	hub         *ws.Hub
}

func NewMarketServer(ctx context.Context, cfg MarketServerConfig) (*MarketServer, error) {
	s := &MarketServer{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	ledger, closeLedger, err := OpenLedger(ctx, cfg.Bank)
	if err != nil {
		return nil, err
	}
	s.ledger, s.closeLedger = ledger, closeLedger

	opts := []market.Option{}
	if cfg.Journal.Path != "" {
		if err := s.openJournal(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, market.WithJournal(s.journal))
	}

	if s.broker, err = openBroker(cfg.Feed); err != nil {
		return nil, err
	}
	opts = append(opts, market.WithPublisher(feed.NewPublisher(s.broker)))

	s.gateway = market.NewGateway(ledger, cfg.Market, opts...)
	s.hub = ws.NewHub()
	ok = true
	return s, nil
}

// openJournal reports settlements a previous run left half done, then
// opens the journal for this run.
func (s *MarketServer) openJournal(ctx context.Context) error {
	path := s.cfg.Journal.Path
	if err := ensureDir(path); err != nil {
		return err
	}
	open, err := market.Unresolved(path)
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	for _, rec := range open {
		logger.Urgent(ctx, "unresolved settlement from previous run",
			zap.String("settlement", rec.ID),
			zap.String("step", rec.Step),
			zap.String("item", rec.Item),
			zap.String("price", rec.Price.String()),
			zap.String("buyer", rec.Buyer),
			zap.String("seller", rec.Seller),
			zap.String("reason", rec.Reason),
			zap.Time("at", rec.At),
		)
	}
	s.journal, err = market.OpenJournal(path)
	return err
}

func openBroker(cfg FeedConfig) (feed.Broker, error) {
	switch cfg.Broker {
	case "", "memory":
		return feed.NewMemBroker(0), nil
	case "nats":
		return feed.NewNatsBroker(cfg.NatsURL)
	}
	return nil, fmt.Errorf("unknown feed broker %q", cfg.Broker)
}

// Run serves until ctx ends or a component fails.
func (s *MarketServer) Run(ctx context.Context) error {
	defer s.close()

	shutdownTrace, err := trace.InitTrace(s.cfg.Name, s.cfg.Trace)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	metrics.MustRegister()

	g, ctx := errgroup.WithContext(ctx)
	if err := ws.Bridge(ctx, s.hub, s.broker); err != nil {
		_ = shutdownTrace(context.Background())
		return fmt.Errorf("feed bridge: %w", err)
	}
	g.Go(func() error {
		s.gateway.Run(ctx)
		return nil
	})

	wsSrv := ws.NewServer(ctx, s.gateway, s.hub, s.cfg.WS)
	srv := httpapi.NewServer(ctx, s.cfg.HTTP, httpapi.Deps{
		ServiceName: s.cfg.Name,
		Market:      s.gateway,
		Bank:        s.ledger,
		WS:          wsSrv.ServeWS,
	})
	g.Go(func() error {
		logger.Info(ctx, "http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var pprof *http.Server
	if s.cfg.PprofAddr != "" {
		pprof = bootstrap.StartPprof(ctx, s.cfg.PprofAddr)
	}

	g.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(stopCtx)
		if pprof != nil {
			_ = pprof.Shutdown(stopCtx)
		}
		_ = shutdownTrace(stopCtx)
		return nil
	})

	err = g.Wait()
	logger.Info(context.Background(), "market server stopped", zap.Error(err))
	return err
}

func (s *MarketServer) close() {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.journal != nil {
		_ = s.journal.Close()
	}
	if s.closeLedger != nil {
		_ = s.closeLedger()
	}
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
