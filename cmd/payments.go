package cmd

import (
	"context"
	"time"

	"github.com/go-chi/chi"
	chiware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appctx "github.com/opencommerce/payment-go/libs/context"
	"github.com/opencommerce/payment-go/libs/logging"
	"github.com/opencommerce/payment-go/libs/middleware"
)

func init() {
	// add rest subcommand
	paymentsCmd.AddCommand(restCmd)

	// add this command as a serve subcommand
	serveCmd.AddCommand(paymentsCmd)

	// setup the flags

	// database-url - the payments database
	paymentsCmd.PersistentFlags().String("database-url", "",
		"the datastore url for the payment service")
	Must(viper.BindPFlag("database-url", paymentsCmd.PersistentFlags().Lookup("database-url")))
	Must(viper.BindEnv("database-url", "DATABASE_URL"))

	// database-migrate - perform the database migration on startup
	paymentsCmd.PersistentFlags().Bool("database-migrate", true,
		"perform database migration on startup")
	Must(viper.BindPFlag("database-migrate", paymentsCmd.PersistentFlags().Lookup("database-migrate")))
	Must(viper.BindEnv("database-migrate", "DATABASE_MIGRATE"))

	// enable-dummy-gateways - register the dummy gateways, for development
	paymentsCmd.PersistentFlags().Bool("enable-dummy-gateways", false,
		"register the dummy and dummy card gateways")
	Must(viper.BindPFlag("enable-dummy-gateways", paymentsCmd.PersistentFlags().Lookup("enable-dummy-gateways")))
	Must(viper.BindEnv("enable-dummy-gateways", "ENABLE_DUMMY_GATEWAYS"))

	// stripe-secret - the stripe api secret; stripe is registered when set
	paymentsCmd.PersistentFlags().String("stripe-secret", "",
		"the stripe api secret key")
	Must(viper.BindPFlag("stripe-secret", paymentsCmd.PersistentFlags().Lookup("stripe-secret")))
	Must(viper.BindEnv("stripe-secret", "STRIPE_SECRET"))

	// stripe-auto-capture - capture immediately rather than auth then capture
	paymentsCmd.PersistentFlags().Bool("stripe-auto-capture", false,
		"make stripe capture funds immediately on process/confirm")
	Must(viper.BindPFlag("stripe-auto-capture", paymentsCmd.PersistentFlags().Lookup("stripe-auto-capture")))
	Must(viper.BindEnv("stripe-auto-capture", "STRIPE_AUTO_CAPTURE"))

	// sentry-dsn - report panics and 5xx to sentry when set
	paymentsCmd.PersistentFlags().String("sentry-dsn", "",
		"the sentry dsn for error reporting")
	Must(viper.BindPFlag("sentry-dsn", paymentsCmd.PersistentFlags().Lookup("sentry-dsn")))
	Must(viper.BindEnv("sentry-dsn", "SENTRY_DSN"))

	// cors-allowed-origins - origins allowed to hit the rest endpoints
	paymentsCmd.PersistentFlags().StringSlice("cors-allowed-origins", []string{"*"},
		"the origins allowed on the rest endpoints")
	Must(viper.BindPFlag("cors-allowed-origins", paymentsCmd.PersistentFlags().Lookup("cors-allowed-origins")))
	Must(viper.BindEnv("cors-allowed-origins", "CORS_ALLOWED_ORIGINS"))

	// stripe-currencies - currency scoping for the stripe gateway
	paymentsCmd.PersistentFlags().StringSlice("stripe-currencies", []string{},
		"the currencies the stripe gateway is limited to, empty for all")
	Must(viper.BindPFlag("stripe-currencies", paymentsCmd.PersistentFlags().Lookup("stripe-currencies")))
	Must(viper.BindEnv("stripe-currencies", "STRIPE_CURRENCIES"))
}

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "provides payment orchestration micro-services",
}

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "provides REST api services",
	Run:   PaymentsRestRun,
}

func setupRouter(ctx context.Context) *chi.Mux {
	logger, err := appctx.GetLogger(ctx)
	if err != nil {
		// no logger on context, make a new one
		_, logger = logging.SetupLogger(ctx)
	}

	r := chi.NewRouter()
	r.Use(
		chiware.RequestID,
		chiware.RealIP,
		chiware.Heartbeat("/"),
		chiware.Timeout(30*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: viper.GetStringSlice("cors-allowed-origins"),
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		middleware.RequestIDTransfer)
	if logger != nil {
		// Also handles panic recovery
		r.Use(
			hlog.NewHandler(*logger),
			hlog.UserAgentHandler("user_agent"),
			hlog.RequestIDHandler("req_id", "Request-Id"),
			middleware.RequestLogger(logger))
	}
	return r
}
