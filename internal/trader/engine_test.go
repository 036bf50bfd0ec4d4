package trader

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"tweet-sentiment-trader-go/internal/config"
	"tweet-sentiment-trader-go/internal/database"
	"tweet-sentiment-trader-go/internal/extractor"
	"tweet-sentiment-trader-go/internal/kite"
	"tweet-sentiment-trader-go/internal/market"
	"tweet-sentiment-trader-go/internal/models"
	"tweet-sentiment-trader-go/internal/simulator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type MockBroker struct{ mock.Mock }

func (m *MockBroker) LastPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockBroker) PlaceOrder(ctx context.Context, symbol string, quantity int, side string) (string, error) {
	args := m.Called(ctx, symbol, quantity, side)
	return args.String(0), args.Error(1)
}

type MockFeed struct{ mock.Mock }

func (m *MockFeed) Refresh(ctx context.Context, handle string, day time.Time, mode models.FeedMode) ([]models.Post, error) {
	args := m.Called(ctx, handle, day, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Post), args.Error(1)
}

type MockClassifier struct{ mock.Mock }

func (m *MockClassifier) Classify(ctx context.Context, text string) (models.Sentiment, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(models.Sentiment), args.Error(1)
}

type fixture struct {
	engine     *Engine
	repo       *database.Repository
	feed       *MockFeed
	classifier *MockClassifier
	broker     *MockBroker
	now        time.Time
}

// setupTest wires an engine against mocks and a fresh in-memory database.
func setupTest(t *testing.T, dryRun bool) *fixture {
	t.Helper()
	session, err := market.NewSession(config.Market{
		Timezone: "Asia/Kolkata", OpenTime: "09:15", CloseTime: "15:30",
		OpeningWindow: 30, ClosingWindow: 30, OpenCutoffHour: 10, CloseCutoffHour: 14,
	})
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	f := &fixture{
		repo:       database.NewRepository(db),
		feed:       new(MockFeed),
		classifier: new(MockClassifier),
		broker:     new(MockBroker),
		now:        time.Date(2024, 3, 4, 9, 20, 0, 0, session.Location()),
	}
	cfg := &config.Config{Trading: config.Trading{
		Handles:             []string{"alice"},
		TradeAmount:         10000,
		ConfidenceThreshold: 0.7,
		MaxPositions:        2,
		DryRun:              dryRun,
	}}
	f.engine = NewEngine(Deps{
		Logger:     zap.NewNop(),
		Cfg:        cfg,
		Session:    session,
		Feed:       f.feed,
		Classifier: f.classifier,
		Extractor:  extractor.New(map[string]struct{}{"TCS": {}, "INFY": {}, "SBIN": {}}),
		Broker:     f.broker,
		Store:      f.repo,
		Sizing:     simulator.New(simulator.Params{Allocation: 10000, StopPct: 0.02, TargetPct: 0.04}),
		Now:        func() time.Time { return f.now },
	})
	return f
}

func post(id, text string) models.Post {
	return models.Post{ID: id, Text: text, Author: "alice", CreatedAt: time.Date(2024, 3, 4, 3, 46, 0, 0, time.UTC)}
}

func TestEngine_Tick_PlacesOrder(t *testing.T) {
	f := setupTest(t, false)
	ctx := context.Background()

	f.feed.On("Refresh", ctx, "alice", f.now, models.FeedLive).Return([]models.Post{post("1", "$TCS NSE:TCS")}, nil)
	f.classifier.On("Classify", ctx, "$TCS NSE:TCS").Return(models.SentimentSuperPositive, nil)
	f.broker.On("LastPrice", ctx, "TCS").Return(3000.0, nil)
	f.broker.On("PlaceOrder", ctx, "TCS", 3, kite.TransactionTypeBuy).Return("240304000000001", nil)

	require.NoError(t, f.engine.Tick(ctx))

	trades, err := f.repo.Trades(ctx, database.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "TCS", trades[0].Symbol)
	assert.Equal(t, 3, trades[0].Quantity)
	assert.Equal(t, models.TradeStatusOpen, trades[0].Status)
	assert.Equal(t, "240304000000001", trades[0].OrderID)
	assert.Equal(t, "alice", trades[0].Handle)
	assert.Equal(t, models.SentimentSuperPositive, trades[0].Sentiment)
	assert.False(t, trades[0].DryRun)

	// A second tick sees the same post and does nothing.
	require.NoError(t, f.engine.Tick(ctx))
	f.broker.AssertNumberOfCalls(t, "PlaceOrder", 1)
	f.classifier.AssertNumberOfCalls(t, "Classify", 1)
}

func TestEngine_Tick_DryRunRecordsWithoutOrder(t *testing.T) {
	f := setupTest(t, true)
	ctx := context.Background()

	f.feed.On("Refresh", ctx, "alice", f.now, models.FeedLive).Return([]models.Post{post("1", "$INFY NSE:INFY")}, nil)
	f.classifier.On("Classify", ctx, "$INFY NSE:INFY").Return(models.SentimentSuperPositive, nil)
	f.broker.On("LastPrice", ctx, "INFY").Return(1500.0, nil)

	require.NoError(t, f.engine.Tick(ctx))

	trades, err := f.repo.Trades(ctx, database.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].DryRun)
	assert.Empty(t, trades[0].OrderID)
	assert.Equal(t, 6, trades[0].Quantity)
	f.broker.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Tick_Skips(t *testing.T) {
	testCases := []struct {
		name      string
		text      string
		sentiment models.Sentiment
		price     float64
	}{
		{name: "positive is not enough", text: "$TCS NSE:TCS", sentiment: models.SentimentPositive},
		{name: "low confidence symbol", text: "looking at SBIN", sentiment: models.SentimentSuperPositive},
		{name: "unknown symbol", text: "$ACME NSE:ACME", sentiment: models.SentimentSuperPositive},
		{name: "price above allocation", text: "$TCS NSE:TCS", sentiment: models.SentimentSuperPositive, price: 20000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTest(t, false)
			ctx := context.Background()

			f.feed.On("Refresh", ctx, "alice", f.now, models.FeedLive).Return([]models.Post{post("1", tc.text)}, nil)
			f.classifier.On("Classify", ctx, tc.text).Return(tc.sentiment, nil)
			if tc.price > 0 {
				f.broker.On("LastPrice", ctx, "TCS").Return(tc.price, nil)
			}

			require.NoError(t, f.engine.Tick(ctx))

			n, err := f.repo.CountOpenTrades(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
			f.broker.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEngine_Tick_MaxPositions(t *testing.T) {
	f := setupTest(t, true)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.NoError(t, f.repo.CreateTrade(ctx, &models.Trade{
			Symbol: "SBIN", PostID: fmt.Sprintf("old-%d", i), Status: models.TradeStatusOpen, EntryTime: f.now,
		}))
	}

	f.feed.On("Refresh", ctx, "alice", f.now, models.FeedLive).Return([]models.Post{post("1", "$TCS NSE:TCS")}, nil)
	f.classifier.On("Classify", ctx, "$TCS NSE:TCS").Return(models.SentimentSuperPositive, nil)

	require.NoError(t, f.engine.Tick(ctx))
	f.broker.AssertNotCalled(t, "LastPrice", mock.Anything, mock.Anything)
}

func TestEngine_Tick_OutsideWindow(t *testing.T) {
	f := setupTest(t, false)
	f.now = time.Date(2024, 3, 4, 12, 0, 0, 0, f.now.Location())

	require.NoError(t, f.engine.Tick(context.Background()))
	f.feed.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Tick_Errors(t *testing.T) {
	t.Run("feed failure is logged", func(t *testing.T) {
		f := setupTest(t, false)
		ctx := context.Background()
		f.feed.On("Refresh", ctx, "alice", f.now, models.FeedLive).Return(nil, errors.New("timeout"))

		assert.NoError(t, f.engine.Tick(ctx))
	})

	t.Run("unavailable broker stops the tick", func(t *testing.T) {
		f := setupTest(t, false)
		ctx := context.Background()
		f.feed.On("Refresh", ctx, "alice", f.now, models.FeedLive).Return([]models.Post{post("1", "$TCS NSE:TCS")}, nil)
		f.classifier.On("Classify", ctx, "$TCS NSE:TCS").Return(models.SentimentSuperPositive, nil)
		f.broker.On("LastPrice", ctx, "TCS").Return(0.0, fmt.Errorf("quote: %w", models.ErrCollaboratorUnavailable))

		err := f.engine.Tick(ctx)
		assert.ErrorIs(t, err, models.ErrCollaboratorUnavailable)
	})

	t.Run("classifier failure skips the post", func(t *testing.T) {
		f := setupTest(t, false)
		ctx := context.Background()
		f.feed.On("Refresh", ctx, "alice", f.now, models.FeedLive).Return([]models.Post{post("1", "$TCS NSE:TCS")}, nil)
		f.classifier.On("Classify", ctx, "$TCS NSE:TCS").Return(models.SentimentNeutral, errors.New("503"))

		assert.NoError(t, f.engine.Tick(ctx))
		f.broker.AssertNotCalled(t, "LastPrice", mock.Anything, mock.Anything)
	})

	t.Run("failed post is retried on the next tick", func(t *testing.T) {
		f := setupTest(t, false)
		ctx := context.Background()
		f.feed.On("Refresh", ctx, "alice", f.now, models.FeedLive).Return([]models.Post{post("1", "$TCS NSE:TCS")}, nil)
		f.classifier.On("Classify", ctx, "$TCS NSE:TCS").Return(models.SentimentSuperPositive, nil)
		f.broker.On("LastPrice", ctx, "TCS").Return(0.0, errors.New("timeout")).Once()
		f.broker.On("LastPrice", ctx, "TCS").Return(3000.0, nil).Once()
		f.broker.On("PlaceOrder", ctx, "TCS", 3, kite.TransactionTypeBuy).Return("order-1", nil).Once()

		require.NoError(t, f.engine.Tick(ctx))
		n, err := f.repo.CountOpenTrades(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, f.engine.Tick(ctx))
		n, err = f.repo.CountOpenTrades(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, f.engine.Tick(ctx))
		f.broker.AssertNumberOfCalls(t, "PlaceOrder", 1)
		f.classifier.AssertNumberOfCalls(t, "Classify", 2)
	})
}

func TestEngine_Run_StopsOnCancel(t *testing.T) {
	f := setupTest(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		f.engine.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
}
