package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	// pprof imports
	_ "net/http/pprof"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appctx "github.com/opencommerce/payment-go/libs/context"
	"github.com/opencommerce/payment-go/libs/handlers"
	"github.com/opencommerce/payment-go/libs/logging"
	"github.com/opencommerce/payment-go/libs/middleware"
	"github.com/opencommerce/payment-go/payment"
	"github.com/opencommerce/payment-go/payment/gateway"
	"github.com/opencommerce/payment-go/payment/gateway/dummy"
	"github.com/opencommerce/payment-go/payment/gateway/dummycard"
	"github.com/opencommerce/payment-go/payment/gateway/stripegw"
)

// PaymentsRestRun - main entrypoint of the REST subcommand. This function
// takes a cobra command and starts up the payments rest microservice.
func PaymentsRestRun(command *cobra.Command, args []string) {
	ctx := command.Context()
	logger, err := appctx.GetLogger(ctx)
	if err != nil {
		// no logger, setup
		ctx, logger = logging.SetupLogger(ctx)
	}

	// add profiling flag to enable profiling routes
	if viper.GetString("pprof-enabled") != "" {
		// pprof attaches routes to default serve mux
		// host:6061/debug/pprof/
		go func() {
			logger.Error().Err(http.ListenAndServe(":6061", http.DefaultServeMux))
		}()
	}

	// add our command line params to context
	ctx = context.WithValue(ctx, appctx.DatabaseURLCTXKey, viper.Get("database-url"))
	ctx = context.WithValue(ctx, appctx.StripeSecretCTXKey, viper.Get("stripe-secret"))

	if err := setupSentry(ctx, viper.GetString("sentry-dsn")); err != nil {
		logger.Panic().Err(err).Msg("unable to setup reporting!")
	}

	db, err := payment.NewPostgres(viper.GetString("database-url"), viper.GetBool("database-migrate"))
	if err != nil {
		sentry.CaptureException(err)
		logger.Fatal().Err(err).Msg("failed to connect to the payments datastore")
	}

	registry := gateway.NewRegistry()
	if viper.GetBool("enable-dummy-gateways") {
		Must(registry.Register(gateway.Config{
			ID:     dummy.ID,
			Name:   "Dummy",
			Active: true,
		}, dummy.New()))
		Must(registry.Register(gateway.Config{
			ID:     dummycard.ID,
			Name:   "Dummy Card",
			Active: true,
		}, dummycard.New()))
	}
	if secret := viper.GetString("stripe-secret"); secret != "" {
		Must(registry.Register(gateway.Config{
			ID:                  stripegw.ID,
			Name:                "Stripe",
			Active:              true,
			SupportedCurrencies: viper.GetStringSlice("stripe-currencies"),
		}, stripegw.New(secret, viper.GetBool("stripe-auto-capture"))))
	}

	// setup the service now
	service, err := payment.InitService(db, registry, payment.NewCheckoutStore(db))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize payment service")
	}

	// do rest endpoints
	r := setupRouter(ctx)
	r.Mount("/v1/payments", payment.Router(service))
	r.Get("/metrics", middleware.Metrics())
	r.Get("/health-check", handlers.HealthCheckHandler(
		ctx.Value(appctx.VersionCTXKey).(string),
		ctx.Value(appctx.BuildTimeCTXKey).(string),
		ctx.Value(appctx.CommitCTXKey).(string)))

	logger.Info().
		Str("address", viper.GetString("address")).
		Msg("starting payments rest service")

	// setup server, and run
	srv := http.Server{
		Addr:         viper.GetString("address"),
		Handler:      chi.ServerBaseContext(ctx, r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	// make sure exceptions go to sentry
	defer sentry.Flush(time.Second * 2)

	if err = srv.ListenAndServe(); err != nil {
		sentry.CaptureException(err)
		logger.Fatal().Err(err).Msg("HTTP server start failed!")
	}
}

// setupSentry initializes the sentry client; without a dsn nothing is reported
func setupSentry(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	commit, _ := ctx.Value(appctx.CommitCTXKey).(string)
	buildTime, _ := ctx.Value(appctx.BuildTimeCTXKey).(string)
	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: viper.GetString("environment"),
		Release:     fmt.Sprintf("payment-go@%s-%s", commit, buildTime),
	})
}
