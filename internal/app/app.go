package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"wtb-relay-go/internal/config"
	"wtb-relay-go/internal/db"
	"wtb-relay-go/internal/handler"
	"wtb-relay-go/internal/metrics"
	"wtb-relay-go/internal/publisher"
	"wtb-relay-go/internal/repository"
	"wtb-relay-go/internal/reputation"
	"wtb-relay-go/internal/routing"
	"wtb-relay-go/internal/scheduler"
	"wtb-relay-go/internal/server"
	"wtb-relay-go/internal/service"
	"wtb-relay-go/internal/telegram"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Failed to read .env file")
	}

	logrus.Info("Starting WTB Relay Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("Unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle, err := db.Init(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer handle.Close()

	repo := repository.New(handle.DB)
	m := metrics.NewMetrics()

	kw, err := routing.LoadKeywords(cfg.Routing.CategoriesPath, cfg.Routing.TopicsPath)
	if err != nil {
		return fmt.Errorf("failed to load routing dictionaries: %w", err)
	}
	router := routing.NewRouter(kw, cfg.Routing.GeneralTopicID, cfg.Routing.MaxHits)
	source := &routing.FileSource{
		Router:         router,
		CategoriesPath: cfg.Routing.CategoriesPath,
		TopicsPath:     cfg.Routing.TopicsPath,
	}

	agg := reputation.NewAggregator(repo, cfg.Publisher.MaxStars, m)

	var (
		bot      *tgbotapi.BotAPI
		sink     publisher.Sink = logSink{}
		resolver service.NameResolver
	)
	if cfg.Telegram.Enabled {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("failed to create telegram bot: %w", err)
		}
		logrus.Infof("Authorized as @%s", bot.Self.UserName)
		sink = telegram.NewSink(bot, cfg.Routing.GeneralTopicID)
		resolver = telegram.NewResolver(bot)
	} else {
		logrus.Warn("Telegram disabled, posts are only logged")
	}

	pub := publisher.New(sink, repo, publisher.Options{
		ChatID:       cfg.Telegram.TargetChatID,
		BotUsername:  cfg.Telegram.BotUsername,
		SendInterval: cfg.Publisher.SendInterval,
		BackoffBase:  cfg.Publisher.BackoffBase,
		MaxRetries:   cfg.Publisher.MaxRetries,
	}, m)

	relay := service.NewRelay(repo, router, agg, pub, resolver, service.Options{
		MaxTextLength:  cfg.Publisher.MaxTextLength,
		BotUsername:    cfg.Telegram.BotUsername,
		TargetChatID:   cfg.Telegram.TargetChatID,
		TargetUsername: cfg.Telegram.TargetChat,
		AdminContact:   cfg.Telegram.AdminContact,
		CoalesceDelay:  cfg.Coalescer.Delay,
	}, m)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(&cfg.Scheduler, agg, source, m)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	h := handler.NewHandlers(repo, relay, source, agg, sched)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("HTTP server error: %v", err)
			stop()
		}
	}()

	var wg sync.WaitGroup
	if bot != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = cfg.Telegram.PollTimeout
		updates := bot.GetUpdatesChan(u)

		listener := telegram.NewListener(bot, relay, cfg.Telegram.IsWatched, cfg.Telegram.Workers)
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener.Run(ctx, updates)
		}()
	}

	<-ctx.Done()

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if bot != nil {
		bot.StopReceivingUpdates()
	}
	wg.Wait()

	if sched != nil {
		if err := sched.Stop(); err != nil {
			logrus.Errorf("Failed to stop scheduler: %v", err)
		}
		sched.Wait()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	// flush coalesced edits before the database goes away
	relay.Close()

	logrus.Info("Server stopped gracefully")
	return nil
}

// logSink stands in for Telegram when it is disabled
type logSink struct{}

func (logSink) Send(_ context.Context, dest publisher.Destination, body string, _ *publisher.Controls) (int64, error) {
	logrus.WithFields(logrus.Fields{
		"chat_id":  dest.ChatID,
		"topic_id": dest.TopicID,
	}).Info("Post (telegram disabled): " + body)
	return time.Now().UnixNano(), nil
}

func (logSink) Edit(_ context.Context, chatID, messageID int64, _ string, _ *publisher.Controls) error {
	logrus.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"message_id": messageID,
	}).Debug("Edit (telegram disabled)")
	return nil
}
