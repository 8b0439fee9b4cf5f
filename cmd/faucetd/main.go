package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	faucet "github.com/agentfaucet/faucetd"
	"github.com/agentfaucet/faucetd/client"
	"github.com/agentfaucet/faucetd/internal/config"
	"github.com/agentfaucet/faucetd/internal/infra/database"
	"github.com/agentfaucet/faucetd/internal/infra/gateway"
	"github.com/agentfaucet/faucetd/internal/infra/repository"
	"github.com/agentfaucet/faucetd/internal/present/rest"
	"github.com/agentfaucet/faucetd/internal/present/rest/middleware"
	"github.com/agentfaucet/faucetd/internal/service"
	"github.com/agentfaucet/faucetd/internal/usecase"
	"github.com/agentfaucet/faucetd/token"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defaultClaimWei, err := faucet.ParseEther(conf.Faucet.DefaultClaim)
	if err != nil || !defaultClaimWei.IsInt64() {
		slog.Error("invalid defaultClaim", slog.String("value", conf.Faucet.DefaultClaim))
		os.Exit(1)
	}
	domainConf := conf.Domain(defaultClaimWei.Int64())

	if conf.Server.EnableTrace {
		shutdown, err := setupTracer(conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := database.MigratePostgres(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, "", conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	chain, err := gateway.NewChainGateway(domainConf)
	if err != nil {
		slog.Error("failed to set up chain gateway", slog.String("error", err.Error()))
		os.Exit(1)
	}

	github := client.NewGitHub(conf.Server.GithubAPIBase)
	reputationGW := gateway.NewReputationGateway(github)

	identityRepo := repository.NewIdentityRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)

	issuer := token.NewIssuer([]byte(domainConf.TokenSecret), domainConf.Issuer)

	authSvc := service.NewAuthService(domainConf, issuer)
	signalSvc := service.NewSignalService(rdb)
	reconcileSvc := service.NewReconcileService(domainConf, ledgerRepo, claimRepo)

	claimUC := usecase.NewClaimUsecase(domainConf, identityRepo, ledgerRepo, claimRepo, chain, signalSvc)
	identityUC := usecase.NewIdentityUsecase(domainConf, identityRepo, reputationGW, chain, issuer)
	statsUC := usecase.NewStatsUsecase(domainConf, identityRepo, claimRepo, campaignRepo, chain, mc)
	sponsorUC := usecase.NewSponsorUsecase(campaignRepo, claimRepo, chain)

	handler := rest.NewHandler(domainConf, claimUC, identityUC, statsUC, sponsorUC, signalSvc)
	authMiddleware := middleware.NewAuthMiddleware(authSvc, domainConf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reconcileSvc.Run(ctx)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("faucetd"))
	}
	e.Use(authMiddleware.IdentifyRequester)

	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.ListenAddr))
}

func setupTracer(endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("faucetd"),
		)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
