package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kadochi/server/internal/commerce"
	"github.com/kadochi/server/internal/config"
	httprouter "github.com/kadochi/server/internal/http"
	"github.com/kadochi/server/internal/http/handlers"
	"github.com/kadochi/server/internal/httputil"
	"github.com/kadochi/server/internal/logger"
	"github.com/kadochi/server/internal/metrics"
	"github.com/kadochi/server/internal/otp"
	"github.com/kadochi/server/internal/payment"
	"github.com/kadochi/server/internal/ratelimit"
	"github.com/kadochi/server/internal/session"
	"github.com/kadochi/server/internal/token"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Service:     "kadochi-api",
		Environment: cfg.Env,
	})

	m := metrics.New()

	// Stores and the rate limiter are process-local unless a shared Redis is
	// configured, in which case both survive across instances.
	var (
		otpStore otp.Store
		limiter  ratelimit.Limiter
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)
		otpStore = otp.NewRedisStore(client)
		limiter = ratelimit.NewRedisLimiter(client, time.Hour)
		log.Info().Msg("using redis-backed otp store and rate limiter")
	} else {
		otpStore = otp.NewMemoryStore()
		limiter = ratelimit.NewMemoryLimiter(time.Hour)
	}

	issuer := otp.NewIssuer(otp.IssuerConfig{
		Store:       otpStore,
		Limiter:     limiter,
		Client:      httputil.NewClient(10 * time.Second),
		ProviderURL: cfg.OTPProviderURL,
		TTL:         cfg.OTPTTL,
		RatePerHour: cfg.OTPRatePerHour,
	})
	verifier := otp.NewVerifier(otpStore)

	customers := newCustomerSource(cfg, log)

	tokens := token.NewService(cfg.SessionSecret)
	cookies := token.CookieConfig{
		SessionName: cfg.SessionCookieName,
		CSRFName:    cfg.CSRFCookieName,
		Domain:      cfg.CookieDomain,
	}
	sessions := session.NewManager(tokens, cookies, customers, cfg.SessionTTL)

	gateway := payment.NewGateway(cfg.MerchantID, cfg.PaymentSandbox, httputil.NewClient(15*time.Second))
	authorizer := payment.NewAuthorizer(gateway, cfg.MerchantID, cfg.PaymentCallbackURL)

	authHandler := handlers.NewAuthHandler(issuer, verifier, customers, sessions, tokens, cookies, m)
	paymentHandler := handlers.NewPaymentHandler(authorizer, m)

	router := httprouter.NewRouter(cfg, log, tokens, authHandler, paymentHandler, m.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

// newCustomerSource picks the commerce auth strategy: the token-authenticated
// helper when an API token is provisioned, the raw key/secret client as
// fallback, nil when the commerce API is not configured at all.
func newCustomerSource(cfg *config.Config, log zerolog.Logger) commerce.CustomerSource {
	if cfg.CommerceAPIURL == "" {
		log.Warn().Msg("commerce api not configured; login and enrichment disabled")
		return nil
	}
	client := httputil.NewClient(cfg.CommerceTimeout)
	if cfg.CommerceAPIToken != "" {
		return commerce.NewTokenClient(cfg.CommerceAPIURL, cfg.CommerceAPIToken, client)
	}
	return commerce.NewBasicClient(cfg.CommerceAPIURL, cfg.CommerceConsumerKey, cfg.CommerceConsumerSecret, client)
}
