// Package billing initializes and runs the billing server: configuration,
// database and migrations, the payment gateway, the webhook archive, and the
// HTTP API with graceful shutdown.
package billing

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/weskerllc/cronicorn-billing/internal/billing/archive"
	"github.com/weskerllc/cronicorn-billing/internal/billing/config"
	"github.com/weskerllc/cronicorn-billing/internal/billing/gateway"
	"github.com/weskerllc/cronicorn-billing/internal/billing/httpapi"
	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
	"github.com/weskerllc/cronicorn-billing/internal/billing/services"
	"github.com/weskerllc/cronicorn-billing/internal/logging"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/weskerllc/cronicorn-billing/internal/billing/repositories/repomanager"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	priceTiers := gateway.StripePriceTiers{
		c.StripePriceIDPro:        models.TierPro,
		c.StripePriceIDEnterprise: models.TierEnterprise,
	}

	stripeGW := gateway.NewStripeGateway(c.StripeAPIKey, c.StripeWebhookSecret, priceTiers)

	// Without an API key every provider call would fail, so local setups get
	// the recording mock instead. Webhook verification still goes through
	// Stripe signature checking.
	var gw gateway.PaymentGateway = stripeGW
	if c.StripeAPIKey == "" {
		logger.Warn(context.Background(), "no Stripe API key configured, using mock gateway")
		gw = &gateway.MockGateway{PriceTiers: priceTiers}
	}

	arc := archive.NewS3Archive(archive.S3Config{
		RootUser:     c.S3RootUser,
		RootPassword: c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})

	refunds := services.NewRefundService(db, repos, gw, logger)
	subs := services.NewSubscriptionService(db, repos, logger)
	webhooks := services.NewWebhookService(db, repos, gw, arc, logger)

	handler := httpapi.NewHandler(refunds, subs, webhooks, stripeGW,
		repos.APIKeys(db), []byte(c.SecretKey), logger)
	server := httpapi.NewServer(c.EndpointAddrHTTP, handler, logger)

	return &App{config: c, logger: logger, db: db, server: server}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
