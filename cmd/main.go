package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"
	_ "time/tzdata"

	"stockwatch-telegram-bot/config"
	"stockwatch-telegram-bot/internal/alert"
	"stockwatch-telegram-bot/internal/chart"
	"stockwatch-telegram-bot/internal/commands"
	"stockwatch-telegram-bot/internal/database"
	"stockwatch-telegram-bot/internal/metrics"
	"stockwatch-telegram-bot/internal/price"
	"stockwatch-telegram-bot/internal/telegram"
	"stockwatch-telegram-bot/lib/translation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

func init() {
	config.InitConfig()
	setupLogging()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	translation.Configure("locales", config.GetString("lang"))
	log.Debugf("Replying in language %s", translation.GetLanguage())

	store, err := database.Open(config.GetString("db_path"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	botMetrics := metrics.New(prometheus.DefaultRegisterer)
	botMetrics.Load(store)

	interval, timeout, ok := config.PollSettings()
	if !ok {
		log.Warnf("fetch_timeout must be positive and shorter than poll_interval, using %s", timeout)
	}

	provider, err := price.NewProvider(
		config.GetString("price_provider"),
		config.GetString("yahoo_base_url"),
		config.GetString("chart_range"),
		config.GetString("api_pro_key"),
		timeout,
	)
	if err != nil {
		log.Fatalf("Failed to create price provider: %v", err)
	}
	source := price.NewSource(provider, timeout)

	location, err := time.LoadLocation(config.GetString("timezone"))
	if err != nil {
		log.Warnf("Unknown timezone %q, using UTC: %v", config.GetString("timezone"), err)
		location = time.UTC
	}

	var renderer commands.ChartRenderer
	if r, err := chart.NewRenderer(); err != nil {
		log.Errorf("Charts disabled: %v", err)
	} else {
		renderer = r
	}

	handler := commands.NewHandler(store, source, renderer, config.GetDuration("chart_cache_ttl"), location)

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:          config.GetString("telegram_bot_token"),
		Debug:          config.GetBool("debug"),
		UpdatesTimeout: 60,
	}, handler)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	alertService := alert.NewService(store, source, bot, interval, botMetrics)
	alertDone := make(chan struct{})
	go func() {
		defer close(alertDone)
		alertService.Start(ctx)
	}()

	updates := bot.GetUpdatesChannel()
	updatesDone := make(chan struct{})
	go func() {
		defer close(updatesDone)
		// replies already in flight at shutdown still reach the store
		handleUpdates(context.WithoutCancel(ctx), bot, botMetrics, updates)
	}()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(config.GetString("metrics_snapshot_schedule"), func() {
		botMetrics.Save(store)
	}); err != nil {
		log.Fatalf("Invalid metrics snapshot schedule: %v", err)
	}
	scheduler.Start()

	server := metrics.NewServer(config.GetInt("metrics_port"), prometheus.DefaultGatherer)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start metrics and health server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	bot.StopReceivingUpdates()
	<-alertDone
	select {
	case <-updatesDone:
	case <-time.After(5 * time.Second):
		// long polling only notices the stop once the pending request returns
		log.Warn("Timed out waiting for the update loop")
	}

	<-scheduler.Stop().Done()
	botMetrics.Save(store)
	log.Info("Metrics saved")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Failed to stop metrics server: %v", err)
	}
}

func setupLogging() {
	log.SetLevel(log.ErrorLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting telegram bot...")
}

func handleUpdates(ctx context.Context, bot *telegram.Bot, m *metrics.Metrics, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if !handleUpdate(ctx, bot, m, update) {
			continue
		}

		if msg := update.Message; msg != nil && msg.Chat != nil {
			chatName := msg.Chat.Title
			if chatName == "" {
				chatName = fmt.Sprintf("%s-%d", "PrivateChat", msg.Chat.ID)
			}
			m.TrackChat(msg.Chat.ID, chatName)
		}
	}
}

func handleUpdate(ctx context.Context, bot *telegram.Bot, m *metrics.Metrics, update tgbotapi.Update) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, debug.Stack())
		}
	}()

	handled, err := bot.HandleUpdate(ctx, update)
	if err != nil {
		log.Errorf("Failed to send message: %v", err)
		return handled
	}
	if handled {
		m.CommandsProcessed.Inc()
	}
	return handled
}
