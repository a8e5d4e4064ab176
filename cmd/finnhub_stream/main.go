package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/utrading/utrading-finnhub-stream/config"
	"github.com/utrading/utrading-finnhub-stream/internal/cache"
	"github.com/utrading/utrading-finnhub-stream/internal/manager"
	"github.com/utrading/utrading-finnhub-stream/internal/models"
	"github.com/utrading/utrading-finnhub-stream/internal/monitor"
	"github.com/utrading/utrading-finnhub-stream/internal/nats"
	"github.com/utrading/utrading-finnhub-stream/internal/ws"
	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
	"github.com/utrading/utrading-finnhub-stream/pkg/sigproc"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.Parse()

	// 加载配置
	if err := config.Init(configFile); err != nil {
		panic(err)
	}
	cfg := config.Get()

	if err := initLogger(cfg); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Close()

	logger.Info().Msg("finnhub_stream service starting...")

	monitor.InitMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// NATS 可选
	var publisher *nats.Publisher
	if cfg.NATS.Enabled {
		var err error
		publisher, err = nats.NewPublisher(nats.PublisherConfig{
			URL:           cfg.NATS.Endpoint,
			Name:          "finnhub_stream",
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			PoolSize:      cfg.NATS.PoolSize,
			FlushTimeout:  cfg.NATS.FlushTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("init nats publisher failed")
		}
	}

	priceCache := cache.NewPriceCache()
	dedupCache := cache.NewDedupCache(cfg.Dedup.TTL)

	client, err := ws.NewClient(ws.Config{
		URL:              cfg.Finnhub.WSURL,
		Token:            cfg.Finnhub.Token,
		HandshakeTimeout: cfg.Finnhub.HandshakeTimeout,
		WriteTimeout:     cfg.Finnhub.WriteTimeout,
		PingPeriod:       cfg.Finnhub.PingPeriod,
		ReadChunkSize:    cfg.Finnhub.ReadChunkSize,
		DisposeTimeout:   cfg.Finnhub.DisposeTimeout,
		ProxyAddr:        cfg.ProxyAddr(),
		Sizing:           manager.Sizing(cfg.Sizing),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create ws client failed")
	}

	registerListeners(client, priceCache, dedupCache, publisher)

	// 健康检查
	var healthServer *monitor.HealthServer
	if cfg.Health.Enabled {
		var pubRef monitor.PublisherRef
		if publisher != nil {
			pubRef = publisher
		}
		healthServer = monitor.NewHealthServer(cfg.Health.Addr, client, pubRef)
		healthServer.AddStatusSource("prices", func() any { return priceCache.Snapshot() })
		healthServer.AddStatusSource("dedup", func() any { return dedupCache.Stats() })
		if err = healthServer.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("start health server failed")
		}
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.Finnhub.HandshakeTimeout)
	err = client.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect finnhub failed")
	}

	subscribeAll(ctx, client, cfg.Finnhub)

	logger.Info().
		Str("ws_url", cfg.Finnhub.WSURL).
		Bool("nats", publisher != nil).
		Bool("health", healthServer != nil).
		Msg("finnhub_stream service started successfully")

	// 优雅关闭
	sigproc.GracefulShutdown(func(sig os.Signal) {
		logger.Info().Str("signal", sig.String()).Msg("shutting down...")

		cancel()

		// 先停行情，之后不会再有回调发布到 NATS
		client.Dispose()

		if healthServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			healthServer.Stop(shutdownCtx)
		}

		if publisher != nil {
			publisher.Close()
		}

		config.Stop()

		logger.Info().Msg("finnhub_stream service stopped")
	})

	<-ctx.Done()
}

func registerListeners(client *ws.Client, prices *cache.PriceCache, dedup *cache.DedupCache, publisher *nats.Publisher) {
	client.OnTrade(func(trades []models.Trade) error {
		if len(trades) == 0 {
			return nil
		}
		prices.Update(trades)
		logger.Debug().Int("count", len(trades)).Str("first", trades[0].String()).Msg("trades")
		if publisher == nil {
			return nil
		}
		return publisher.PublishTrades(trades)
	})

	client.OnNews(func(news []models.News) error {
		fresh := dedup.FilterNews(news)
		for _, n := range fresh {
			logger.Info().Str("news", n.String()).Msg("news")
		}
		if publisher == nil {
			return nil
		}
		return publisher.PublishNews(fresh)
	})

	client.OnPressRelease(func(prs []models.PressRelease) error {
		fresh := dedup.FilterPressReleases(prs)
		for _, pr := range fresh {
			logger.Info().Strs("symbols", pr.Symbols()).Str("headline", pr.Headline).Msg("press release")
		}
		if publisher == nil {
			return nil
		}
		return publisher.PublishPressReleases(fresh)
	})

	client.OnError(func(err error) {
		logger.Warn().Err(err).Msg("stream error")
	})

	client.OnDisconnected(func() {
		logger.Warn().Msg("stream disconnected")
	})
}

// subscribeAll 订阅配置中的全部代码，单个失败不影响其他
func subscribeAll(ctx context.Context, client *ws.Client, cfg config.Finnhub) {
	for _, s := range cfg.TradeSymbols {
		_ = client.SubscribeTrade(ctx, s)
	}
	for _, s := range cfg.NewsSymbols {
		_ = client.SubscribeNews(ctx, s)
	}
	for _, s := range cfg.PressReleaseSymbols {
		_ = client.SubscribePressRelease(ctx, s)
	}
	logger.Info().Int("count", len(client.Subscriptions())).Msg("subscriptions sent")
}

func initLogger(cfg *config.Config) error {
	return logger.NewBuilder().
		SetMaxSize(cfg.Logger.MaxSize).
		SetMaxBackups(cfg.Logger.MaxBackups).
		SetMaxAge(cfg.Logger.MaxAge).
		SetLevel(cfg.Logger.Level).
		EnableCompression(cfg.Logger.Compress).
		EnableConsoleOutput(cfg.Logger.Console).
		Build()
}
