package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authgate/internal/config"
	"github.com/dropDatabas3/authgate/internal/domain/repository"
	httpx "github.com/dropDatabas3/authgate/internal/http"
	"github.com/dropDatabas3/authgate/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/authgate/internal/http/controllers/oauth"
	"github.com/dropDatabas3/authgate/internal/http/controllers/oidc"
	"github.com/dropDatabas3/authgate/internal/http/router"
	jwtx "github.com/dropDatabas3/authgate/internal/jwt"
	"github.com/dropDatabas3/authgate/internal/oauth2"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/store/memory"
	pgstore "github.com/dropDatabas3/authgate/internal/store/pg"
	redisstore "github.com/dropDatabas3/authgate/internal/store/redis"
)

var version = "dev"

func main() {
	var (
		configPath string
		envFile    string
	)

	root := &cobra.Command{
		Use:   "authgate",
		Short: "OAuth 2.0 / OIDC authorization server",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (optional)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to .env (loaded if present)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if _, err := os.Stat(envFile); err == nil {
					_ = godotenv.Load(envFile)
				}
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}

	hashCmd := &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Hash a client secret for static registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := oauth2.HashClientSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Println(h)
			return nil
		},
	}

	root.AddCommand(serveCmd, hashCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// backends groups the repository implementations picked by the storage
// driver.
type backends struct {
	auths      repository.AuthorizationStore
	clients    repository.ClientRegistry
	consents   repository.ConsentStore
	challenges oauth2.ChallengeStore
	pingers    []health.Pinger
	close      func()
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "authgate",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ks, err := buildKeystore(cfg)
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	issuer := jwtx.NewIssuer(cfg.JWT.Issuer, ks)
	issuer.AccessTTL = config.Duration(cfg.JWT.AccessTTL, 15*time.Minute)

	be, err := buildBackends(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer be.close()

	if err := seedClients(ctx, be.clients, cfg.Clients); err != nil {
		return fmt.Errorf("seed clients: %w", err)
	}

	consents := oauth2.NewConsentManager(be.consents)
	authenticator := oauth2.NewClientAuthenticator(be.clients)

	tokenEndpoint := oauth2.NewTokenEndpoint(oauth2.TokenEndpointDeps{
		Authorizations:     be.auths,
		Signer:             issuer,
		RefreshTokenBytes:  cfg.OAuth.RefreshTokenBytes,
		DevicePollInterval: config.Duration(cfg.OAuth.DevicePollInterval, 5*time.Second),
	})
	authorize := oauth2.NewAuthorizeService(oauth2.AuthorizeDeps{
		Clients:        be.clients,
		Authorizations: be.auths,
		Consents:       consents,
		Challenges:     be.challenges,
		CodeTTL:        config.Duration(cfg.OAuth.CodeTTL, 5*time.Minute),
		ConsentTTL:     config.Duration(cfg.OAuth.ConsentTTL, 10*time.Minute),
	})
	device := oauth2.NewDeviceAuthorizationService(oauth2.DeviceAuthorizationDeps{
		Authorizations:  be.auths,
		Consents:        consents,
		VerificationURI: cfg.JWT.Issuer + "/device",
		PollInterval:    config.Duration(cfg.OAuth.DevicePollInterval, 5*time.Second),
	})
	revocation := oauth2.NewRevocationService(be.auths)
	introspection := oauth2.NewIntrospectionService(be.auths, issuer)

	metricsHandler, err := httpx.RegisterMetrics(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	handler := router.New(router.Deps{
		OAuth: oauthctrl.New(oauthctrl.Deps{
			TokenEndpoint: tokenEndpoint,
			Authorize:     authorize,
			Device:        device,
			Revocation:    revocation,
			Introspection: introspection,
		}),
		JWKS:          oidc.NewJWKSController(issuer),
		Discovery:     oidc.NewDiscoveryController(cfg.JWT.Issuer),
		Health:        health.NewController(version, be.pingers...),
		Issuer:        issuer,
		Authenticator: authenticator,
		Metrics:       metricsHandler,
	})

	srv := httpx.NewServer(cfg.Server.Addr, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening",
			logger.String("addr", cfg.Server.Addr),
			logger.String("driver", cfg.Storage.Driver),
			logger.String("issuer", cfg.JWT.Issuer),
		)
		return srv.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func buildKeystore(cfg *config.Config) (*jwtx.Keystore, error) {
	if cfg.JWT.SigningSeed == "" {
		return jwtx.NewMemoryKeystore()
	}
	seed, err := base64.StdEncoding.DecodeString(cfg.JWT.SigningSeed)
	if err != nil {
		return nil, fmt.Errorf("decode signing seed: %w", err)
	}
	return jwtx.NewKeystoreFromSeed(uuid.NewString(), seed)
}

func buildBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	switch cfg.Storage.Driver {
	case "memory", "":
		return &backends{
			auths:      memory.NewAuthorizationStore(),
			clients:    memory.NewClientRegistry(),
			consents:   memory.NewConsentStore(),
			challenges: memory.NewChallengeStore(),
			close:      func() {},
		}, nil

	case "redis":
		s, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return &backends{
			auths:      s,
			clients:    s.Clients(),
			consents:   s.Consents(),
			challenges: s.Challenges(),
			pingers:    []health.Pinger{s},
			close:      func() { _ = s.Close() },
		}, nil

	case "postgres":
		s, err := pgstore.New(ctx, pgstore.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
			MinConns:        int32(cfg.Storage.Postgres.MinConns),
			ConnMaxLifetime: config.Duration(cfg.Storage.Postgres.ConnMaxLifetime, 0),
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return &backends{
			auths:    s,
			clients:  s.Clients(),
			consents: s.Consents(),
			// Consent challenges are short-lived and node-local; the
			// in-memory store serves them for the pg driver.
			challenges: memory.NewChallengeStore(),
			pingers:    []health.Pinger{s},
			close:      s.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func seedClients(ctx context.Context, registry repository.ClientRegistry, seeds []config.ClientSeed) error {
	for _, seed := range seeds {
		client := &repository.RegisteredClient{
			ClientID:            seed.ClientID,
			Name:                seed.Name,
			AuthMethods:         seed.AuthMethods,
			GrantTypes:          seed.GrantTypes,
			RedirectURIs:        seed.RedirectURIs,
			Scopes:              seed.Scopes,
			AccessTokenTTL:      config.Duration(seed.AccessTokenTTL, 0),
			RefreshTokenTTL:     config.Duration(seed.RefreshTokenTTL, 0),
			RotateRefreshTokens: seed.RotateRefreshTokens,
			RequireConsent:      seed.RequireConsent,
		}
		if seed.Secret != "" {
			hash, err := oauth2.HashClientSecret(seed.Secret)
			if err != nil {
				return err
			}
			client.SecretHash = hash
		}
		if err := registry.Save(ctx, client); err != nil {
			return fmt.Errorf("register %s: %w", seed.ClientID, err)
		}
	}
	return nil
}
