// Package app wires configuration, storage, the conversation engine and the
// Telegram runtime together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/savdobot/core/bootstrap"
	corecmd "github.com/m3rciful/savdobot/core/cmd"
	coreconfig "github.com/m3rciful/savdobot/core/config"
	coredatabase "github.com/m3rciful/savdobot/core/database"
	"github.com/m3rciful/savdobot/core/health"
	"github.com/m3rciful/savdobot/core/logger"
	coretelegram "github.com/m3rciful/savdobot/core/telegram"
	tgsender "github.com/m3rciful/savdobot/core/telegram/sender"
	"github.com/m3rciful/savdobot/core/telegram/state"
	"github.com/m3rciful/savdobot/internal/bot"
	"github.com/m3rciful/savdobot/internal/catalog"
	"github.com/m3rciful/savdobot/internal/config"
	"github.com/m3rciful/savdobot/internal/events"
	"github.com/m3rciful/savdobot/internal/flow"
	"github.com/m3rciful/savdobot/internal/ledger"
	"github.com/m3rciful/savdobot/internal/storage/postgres"
)

const maxSweepInterval = time.Minute

// RedisClient is the part of *redis.Client the app needs.
type RedisClient interface {
	state.RedisClient
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Options replace infrastructure constructors. Nil fields use the real ones.
type Options struct {
	LoggerInit   func(*coreconfig.Config) error
	Connect      func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(context.Context, coredatabase.Config, coredatabase.Pinger) error
	NewRedis     func(config.State) RedisClient
	NewPublisher func(events.KafkaConfig) events.Publisher
}

// App holds the wired backends for the lifetime of the process.
type App struct {
	cfg      *config.Config
	infra    *bootstrap.Result
	catalog  catalog.Store
	ledger   ledger.Store
	sessions state.Store[flow.Scratch]
	events   events.Publisher
	redis    RedisClient
	health   *health.Server

	stopSweep context.CancelFunc
}

// LoadConfig adapts config.Load to the runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap adapts New to the runner.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(ctx, cfg, Options{})
}

// New initializes the logger, storage, session state, seed data and the
// event publisher selected by cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	infra, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.DatabaseConfig(),
		LoggerInit: opts.LoggerInit,
		Connect:    opts.Connect,
		Migrate:    opts.Migrate,
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, infra: infra}
	a.openStores()
	if err := a.openState(ctx, opts.NewRedis); err != nil {
		_ = a.close()
		return nil, err
	}
	if err := a.seed(ctx); err != nil {
		_ = a.close()
		return nil, err
	}
	a.events = newPublisher(cfg.Events.Kafka, opts.NewPublisher)
	a.health = a.newHealth()

	logger.TWire.Info("app wired",
		slog.String("event", "app.wired"),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("state", cfg.State.Driver),
		slog.Duration("state_ttl", cfg.StateTTL()),
		slog.Bool("kafka", cfg.Events.Kafka.Enabled()),
	)
	return a, nil
}

func (a *App) openStores() {
	if a.infra.DB != nil {
		a.catalog = postgres.NewCatalogStore(a.infra.DB)
		a.ledger = postgres.NewLedgerStore(a.infra.DB)
		return
	}
	a.catalog = catalog.NewMemoryStore()
	a.ledger = ledger.NewMemoryStore()
}

func (a *App) openState(ctx context.Context, newRedis func(config.State) RedisClient) error {
	ttl := a.cfg.StateTTL()
	if a.cfg.State.Driver != config.DriverRedis {
		mem := state.NewMemoryStore[flow.Scratch](ttl)
		a.sessions = mem
		if ttl > 0 {
			sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			a.stopSweep = cancel
			go sweep(sweepCtx, mem, min(ttl, maxSweepInterval))
		}
		return nil
	}

	if newRedis == nil {
		newRedis = dialRedis
	}
	a.redis = newRedis(a.cfg.State)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("app: redis %s: %w", a.cfg.State.RedisAddr, err)
	}
	a.sessions = state.NewRedisStore[flow.Scratch](a.redis, ttl)
	return nil
}

func dialRedis(cfg config.State) RedisClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func sweep(ctx context.Context, store *state.MemoryStore[flow.Scratch], every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := store.Sweep(); n > 0 {
				logger.Debug(ctx, "app", "state.sweep", slog.Int("removed", n))
			}
		}
	}
}

func (a *App) seed(ctx context.Context) error {
	products := a.cfg.SeedProducts()
	return bootstrap.RunSeeders[catalog.Store](ctx, a.catalog,
		bootstrap.SeederFunc[catalog.Store](func(ctx context.Context, store catalog.Store) error {
			added, err := catalog.Seed(ctx, store, products)
			logger.SEED.Info("catalog seeded",
				slog.String("event", "seed.catalog"),
				slog.Int("products", len(products)),
				slog.Int("added", added),
			)
			return err
		}),
	)
}

func newPublisher(cfg events.KafkaConfig, build func(events.KafkaConfig) events.Publisher) events.Publisher {
	if !cfg.Enabled() {
		return events.Nop{}
	}
	if build == nil {
		return events.NewKafka(cfg)
	}
	return build(cfg)
}

func (a *App) newHealth() *health.Server {
	if a.cfg.Health.Listen == "" {
		return nil
	}
	srv := health.New(a.cfg.Health.Listen)
	if db := a.infra.DB; db != nil {
		srv.AddCheck("postgres", db.PingContext)
	}
	if rdb := a.redis; rdb != nil {
		srv.AddCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	return srv
}

// TelegramRunOptions builds the runtime options: default middlewares and
// the bot's routes.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:   core,
		Registry: coretelegram.NewRegistry(),
		DispatcherOptions: tgsender.Options{
			QueueSize:    128,
			Workers:      4,
			MaxRetries:   3,
			RetryBackoff: time.Second,
		},
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      a.routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) routes(rt coretelegram.Runtime) ([]coretelegram.Route, error) {
	channel, err := bot.ResolveChannel(rt.Bot, a.cfg.Shop.ChannelID)
	if err != nil {
		return nil, err
	}
	engine, err := flow.New(flow.Options{
		Catalog:     a.catalog,
		Ledger:      a.ledger,
		Sessions:    a.sessions,
		Notifier:    bot.NewNotifier(rt.Bot, rt.Dispatcher, channel),
		Events:      a.events,
		AdminID:     a.cfg.Telegram.AdminID,
		PaymentCard: a.cfg.Shop.PaymentCard,
		Currency:    a.cfg.Shop.Currency,
	})
	if err != nil {
		return nil, err
	}
	h := bot.NewHandlers(engine, a.cfg.Telegram.AdminID)
	h.RegisterCommands(rt.Registry)
	routes := h.Routes(rt.Registry)

	logger.TWire.Info("routes wired",
		slog.String("event", "routes"),
		slog.Int64("channel_id", channel),
		slog.Int("commands", len(rt.Registry.Commands())),
		slog.Int("routes", len(routes)),
	)
	return routes, nil
}

func (a *App) start(context.Context, coretelegram.Runtime) error {
	if a.health != nil {
		a.health.Start()
	}
	return nil
}

func (a *App) stop(ctx context.Context, _ coretelegram.Runtime) error {
	var errs []error
	if a.health != nil {
		errs = append(errs, a.health.Shutdown(ctx))
	}
	return errors.Join(append(errs, a.close())...)
}

// close releases backends in reverse order of creation.
func (a *App) close() error {
	var errs []error
	if a.stopSweep != nil {
		a.stopSweep()
	}
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.infra.Close())
	return errors.Join(errs...)
}
