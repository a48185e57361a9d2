package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-graph-signin/graph"
	"github.com/jrsteele09/go-graph-signin/identity"
	"github.com/jrsteele09/go-graph-signin/identity/cache"
	"github.com/jrsteele09/go-graph-signin/internal/config"
	"github.com/jrsteele09/go-graph-signin/internal/seal"
	"github.com/jrsteele09/go-graph-signin/server"
	"github.com/jrsteele09/go-graph-signin/server/browsersession"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
	"github.com/valkey-io/valkey-go"
)

const sealPurposeTokenCache = "token-cache"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to load the configuration")
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()

	store, closeStore, err := newTokenStore(c)
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to create the token cache")
	}
	defer closeStore()

	var opener identity.Opener = identity.BrowserOpener{}
	if !c.GetOpenBrowser() {
		opener = identity.LogOpener{Logger: log.Logger}
	}

	provider, err := identity.NewProvider(ctx, identity.ProviderConfig{
		ClientID:              c.GetClientID(),
		ClientSecret:          c.GetClientSecret(),
		Authority:             c.GetAuthority(),
		RedirectURI:           c.GetRedirectURI(),
		PostLogoutRedirectURI: c.GetPostLogoutRedirectURI(),
		SkipIssuerCheck:       c.GetSkipIssuerCheck(),
	}, store,
		identity.WithOpener(opener),
		identity.WithLogger(log.Logger.With().Str("component", "identity").Logger()),
		identity.WithPopupTimeout(c.GetPopupTimeout()),
	)
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to discover the identity platform")
	}

	handler, err := server.New(c, provider, graph.NewService(c.GetGraphEndpoint(), nil), browsersession.NewInMemoryRepo(c.GetMaxSessionAge()))
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to create the server")
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(srv, c.GetBaseURL()) }()

	select {
	case err := <-serveErr:
		return oops.In("main").Wrapf(err, "Server failed")
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

// newTokenStore returns the token cache for the configured location and a function to release it.
func newTokenStore(c config.Config) (cache.Store, func(), error) {
	if c.GetCacheLocation() != config.CacheLocationValkey {
		return cache.NewMemoryStore(c.GetCacheTTL()), func() {}, nil
	}

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{c.GetValkeyAddress()}})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to valkey at %s: %w", c.GetValkeyAddress(), err)
	}

	var sealer *seal.Sealer
	if secret := c.GetCookieSecret(); secret != "" {
		if sealer, err = seal.New([]byte(secret), sealPurposeTokenCache); err != nil {
			client.Close()
			return nil, nil, err
		}
	} else {
		log.Warn().Msg("COOKIE_SECRET not set, tokens are stored in valkey unsealed")
	}
	return cache.NewValkeyStore(client, c.GetValkeyPrefix(), c.GetCacheTTL(), sealer), client.Close, nil
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server, baseURL string) error {
	log.Info().Str("addr", server.Addr).Str("url", baseURL).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
