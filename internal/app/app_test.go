package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/savdobot/core/config"
	coredatabase "github.com/m3rciful/savdobot/core/database"
	coretelegram "github.com/m3rciful/savdobot/core/telegram"
	tgsender "github.com/m3rciful/savdobot/core/telegram/sender"
	"github.com/m3rciful/savdobot/core/telegram/state"
	"github.com/m3rciful/savdobot/internal/catalog"
	"github.com/m3rciful/savdobot/internal/config"
	"github.com/m3rciful/savdobot/internal/events"
	"github.com/m3rciful/savdobot/internal/flow"
	"github.com/m3rciful/savdobot/internal/storage/postgres"

	tele "gopkg.in/telebot.v4"
)

func noLogger(*coreconfig.Config) error { return nil }

func testConfig() *config.Config {
	cfg := &config.Config{
		Shop:    config.Shop{ChannelID: "-1001234567890", PaymentCard: "8600 0000 0000 0000", Currency: "UZS"},
		Storage: config.Storage{Driver: config.DriverMemory},
		State:   config.State{Driver: config.DriverMemory},
	}
	cfg.Telegram = coreconfig.TelegramConfig{Token: "123:abc", AdminID: 1000, RunMode: coreconfig.RunModeLongpoll}
	return cfg
}

type fakeRedis struct {
	pingErr error
	closed  bool
}

func (f *fakeRedis) Get(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Set(ctx context.Context, _ string, _ any, _ time.Duration) *redis.StatusCmd {
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

type recordingPublisher struct {
	events.Nop
	closed bool
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestNewMemoryBackends(t *testing.T) {
	a, err := New(context.Background(), testConfig(), Options{LoggerInit: noLogger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close() })

	assert.IsType(t, &catalog.MemoryStore{}, a.catalog)
	assert.IsType(t, &state.MemoryStore[flow.Scratch]{}, a.sessions)
	assert.IsType(t, events.Nop{}, a.events)
	assert.Nil(t, a.health)
	assert.NotNil(t, a.stopSweep)

	products, err := a.catalog.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 4)
}

func TestNewDisabledTTLSkipsSweeper(t *testing.T) {
	cfg := testConfig()
	zero := time.Duration(0)
	cfg.State.TTL = &zero
	a, err := New(context.Background(), cfg, Options{LoggerInit: noLogger})
	require.NoError(t, err)
	assert.Nil(t, a.stopSweep)
	require.NoError(t, a.close())
}

func TestNewPostgresBackends(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	cfg := testConfig()
	cfg.Storage.Driver = config.DriverPostgres
	migrated := false
	a, err := New(context.Background(), cfg, Options{
		LoggerInit: noLogger,
		Connect: func(_ context.Context, c coredatabase.Config) (*sqlx.DB, error) {
			assert.Equal(t, "localhost", c.Host)
			return sqlx.NewDb(db, "postgres"), nil
		},
		Migrate: func(context.Context, coredatabase.Config, coredatabase.Pinger) error {
			migrated = true
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.IsType(t, &postgres.CatalogStore{}, a.catalog)
	assert.IsType(t, &postgres.LedgerStore{}, a.ledger)

	require.NoError(t, a.close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedisState(t *testing.T) {
	cfg := testConfig()
	cfg.State = config.State{Driver: config.DriverRedis, RedisAddr: "localhost:6379"}
	cfg.Health.Listen = "127.0.0.1:0"
	rdb := &fakeRedis{}

	a, err := New(context.Background(), cfg, Options{
		LoggerInit: noLogger,
		NewRedis: func(s config.State) RedisClient {
			assert.Equal(t, "localhost:6379", s.RedisAddr)
			return rdb
		},
	})
	require.NoError(t, err)
	assert.IsType(t, &state.RedisStore[flow.Scratch]{}, a.sessions)
	assert.NotNil(t, a.health)

	require.NoError(t, a.close())
	assert.True(t, rdb.closed)
}

func TestNewRedisPingFailure(t *testing.T) {
	cfg := testConfig()
	cfg.State = config.State{Driver: config.DriverRedis, RedisAddr: "localhost:6379"}
	rdb := &fakeRedis{pingErr: errors.New("connection refused")}

	_, err := New(context.Background(), cfg, Options{
		LoggerInit: noLogger,
		NewRedis:   func(config.State) RedisClient { return rdb },
	})
	require.ErrorContains(t, err, "connection refused")
	assert.True(t, rdb.closed)
}

func TestNewKafkaPublisher(t *testing.T) {
	cfg := testConfig()
	cfg.Events.Kafka.Brokers = []string{"kafka:9092"}
	pub := &recordingPublisher{}

	a, err := New(context.Background(), cfg, Options{
		LoggerInit: noLogger,
		NewPublisher: func(k events.KafkaConfig) events.Publisher {
			assert.Equal(t, []string{"kafka:9092"}, k.Brokers)
			return pub
		},
	})
	require.NoError(t, err)
	assert.Same(t, pub, a.events)
	require.NoError(t, a.close())
	assert.True(t, pub.closed)
}

func TestNewSeedFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Catalog.Seed = []catalog.Product{{ID: "BAD_ID", Name: "x"}}
	_, err := New(context.Background(), cfg, Options{LoggerInit: noLogger})
	require.ErrorIs(t, err, catalog.ErrInvalidID)
}

func TestBootstrapRejectsForeignConfig(t *testing.T) {
	_, err := Bootstrap(context.Background(), foreignCarrier{})
	require.ErrorContains(t, err, "unexpected config type")
}

type foreignCarrier struct{}

func (foreignCarrier) CoreConfig() *coreconfig.Config { return &coreconfig.Config{} }

func TestTelegramRunOptionsWiresRoutes(t *testing.T) {
	a, err := New(context.Background(), testConfig(), Options{LoggerInit: noLogger})
	require.NoError(t, err)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.Registry)
	require.NotNil(t, opts.Routes)
	assert.NotEmpty(t, opts.Middlewares)

	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	dispatcher := tgsender.NewDispatcher(tgsender.Options{})
	defer dispatcher.Close()
	rt := coretelegram.Runtime{Bot: b, Dispatcher: dispatcher, Registry: opts.Registry}

	routes, err := opts.Routes(rt)
	require.NoError(t, err)
	assert.NotEmpty(t, routes)
	for _, name := range []string{"/start", "/neworder", "/status", "/help", "/cancel", "/admin"} {
		assert.Contains(t, opts.Registry.Commands(), name)
	}

	require.NoError(t, opts.OnStart(context.Background(), rt))
	require.NoError(t, opts.OnStop(context.Background(), rt))
}

func TestRoutesRejectsBadChannel(t *testing.T) {
	cfg := testConfig()
	cfg.Shop.ChannelID = " "
	a, err := New(context.Background(), cfg, Options{LoggerInit: noLogger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close() })

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	_, err = opts.Routes(coretelegram.Runtime{Registry: opts.Registry})
	require.ErrorContains(t, err, "empty channel id")
}
