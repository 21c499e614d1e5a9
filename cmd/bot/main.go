// Command bot runs the classified-ads Telegram bot: the submission
// conversation, the moderation workflow, and publication to the board
// channel. Updates arrive either via long polling (the default) or via an
// HTTP webhook when WEBHOOK_URL is configured.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-board-bot/internal/bot"
	"github.com/tbourn/go-board-bot/internal/chat"
	"github.com/tbourn/go-board-bot/internal/config"
	"github.com/tbourn/go-board-bot/internal/domain"
	httpapi "github.com/tbourn/go-board-bot/internal/http"
	"github.com/tbourn/go-board-bot/internal/observability"
	"github.com/tbourn/go-board-bot/internal/repo"
	"github.com/tbourn/go-board-bot/internal/services"
	"github.com/tbourn/go-board-bot/internal/session"
	"github.com/tbourn/go-board-bot/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if err := repo.SeedCategories(db); err != nil {
		log.Fatal().Err(err).Msg("category seed failed")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram auth failed")
	}
	log.Info().Str("username", api.Self.UserName).Str("version", version).Msg("bot authorized")

	store := session.NewStore()
	sender := bot.NewTelegramSender(api)
	notifier := services.NewNotifier(sender, cfg.Bot.OperatorChatID)

	batches := services.NewBatchCollector(store, chat.NewKeyedScheduler(), notifier)
	batches.FlushDelay = cfg.Workflow.BatchFlushDelay
	batches.MaxPhotos = cfg.Workflow.MaxAdPhotos

	st := gormStore{}
	moderation := services.NewModerationService(db, st, store, sender, notifier, cfg.Bot.ChannelChatID)
	users := services.NewUserService(db, st, store, batches, notifier)
	submissions := services.NewSubmissionService(db, st, store, batches, notifier, moderation)

	dispatcher := &bot.Dispatcher{
		DB:          db,
		Log:         st,
		Users:       users,
		Submissions: submissions,
		Moderation:  moderation,
		Notifier:    notifier,
		Flood:       bot.NewFloodLimiter(cfg.RateRPS, cfg.RateBurst),
		Acker:       api,
	}

	go purgeLoop(ctx, db, cfg.Workflow.DedupeRetention)

	if cfg.Bot.WebhookURL != "" {
		err = runWebhook(ctx, cfg, api, dispatcher)
	} else {
		err = runPolling(ctx, cfg, api, dispatcher)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot stopped")
	}
	log.Info().Msg("bot stopped")
}

// runPolling consumes updates over long polling. Any webhook left over from a
// previous deployment is removed first, otherwise getUpdates is refused.
func runPolling(ctx context.Context, cfg config.Config, api *tgbotapi.BotAPI, d *bot.Dispatcher) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return err
	}
	p := bot.NewPoller(api, d)
	p.Timeout = cfg.Bot.PollTimeout
	return p.Run(ctx)
}

// runWebhook registers the webhook with Telegram and serves it, together with
// the health and metrics endpoints, until ctx is cancelled.
func runWebhook(ctx context.Context, cfg config.Config, api *tgbotapi.BotAPI, d *bot.Dispatcher) error {
	// The bundled client predates the secret_token parameter, so the
	// setWebhook call is assembled by hand.
	params := tgbotapi.Params{"url": cfg.Bot.WebhookURL + httpapi.WebhookPath}
	if cfg.Bot.WebhookSecret != "" {
		params["secret_token"] = cfg.Bot.WebhookSecret
	}
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return err
	}
	defer func() {
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn().Err(err).Msg("webhook removal failed")
		}
	}()

	r := gin.New()
	httpapi.RegisterRoutes(r, d, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("path", httpapi.WebhookPath).Msg("webhook server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return ctx.Err()
}

// purgeLoop deletes processed-update records older than the retention window
// once an hour. The dedupe log only needs to cover Telegram's retry horizon.
func purgeLoop(ctx context.Context, db *gorm.DB, retention time.Duration) {
	tick := time.NewTicker(time.Hour)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			n, err := repo.PurgeProcessedUpdates(ctx, db, retention)
			if err != nil {
				log.Warn().Err(err).Msg("update log purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("update log purged")
			}
		}
	}
}

// gormStore adapts the repo package's functions to the repository interfaces
// the services and the dispatcher consume.
type gormStore struct{}

func (gormStore) UpsertUser(ctx context.Context, db *gorm.DB, telegramID int64, firstName, lastName, login string) (*domain.User, error) {
	return repo.UpsertUser(ctx, db, telegramID, firstName, lastName, login)
}

func (gormStore) GetUserByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.User, error) {
	return repo.GetUserByTelegramID(ctx, db, telegramID)
}

func (gormStore) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

func (gormStore) SetUserPhone(ctx context.Context, db *gorm.DB, telegramID int64, phone string) error {
	return repo.SetUserPhone(ctx, db, telegramID, phone)
}

func (gormStore) ListModerators(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	return repo.ListModerators(ctx, db)
}

func (gormStore) GetCategoryByAlias(ctx context.Context, db *gorm.DB, alias string) (*domain.Category, error) {
	return repo.GetCategoryByAlias(ctx, db, alias)
}

func (gormStore) ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	return repo.ListCategories(ctx, db)
}

func (gormStore) CreateAd(ctx context.Context, db *gorm.DB, ownerID, title, description string, price int64, categoryID string, photoIDs []string) (*domain.Ad, error) {
	return repo.CreateAd(ctx, db, ownerID, title, description, price, categoryID, photoIDs)
}

func (gormStore) GetAd(ctx context.Context, db *gorm.DB, id string) (*domain.Ad, error) {
	return repo.GetAd(ctx, db, id)
}

func (gormStore) UpdateAdStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.AdStatus) error {
	return repo.UpdateAdStatus(ctx, db, id, from, to)
}

func (gormStore) RejectAd(ctx context.Context, db *gorm.DB, id, reason string) error {
	return repo.RejectAd(ctx, db, id, reason)
}

func (gormStore) RecordChannelMessages(ctx context.Context, db *gorm.DB, adID string, refs []domain.ChannelMessage) error {
	return repo.RecordChannelMessages(ctx, db, adID, refs)
}

func (gormStore) DeleteChannelMessages(ctx context.Context, db *gorm.DB, adID string) error {
	return repo.DeleteChannelMessages(ctx, db, adID)
}

func (gormStore) ListPendingAds(ctx context.Context, db *gorm.DB) ([]domain.Ad, error) {
	return repo.ListPendingAds(ctx, db)
}

func (gormStore) ListApprovedAdsByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Ad, error) {
	return repo.ListApprovedAdsByOwner(ctx, db, ownerID)
}

func (gormStore) MarkUpdateProcessed(ctx context.Context, db *gorm.DB, updateID int64) (bool, error) {
	return repo.MarkUpdateProcessed(ctx, db, updateID)
}
