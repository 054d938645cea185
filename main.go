package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stellar/go/clients/horizonclient"

	"github.com/atomlink/stellar-marketplace-go/config"
	"github.com/atomlink/stellar-marketplace-go/contracts"
	api_handlers "github.com/atomlink/stellar-marketplace-go/handlers"
	"github.com/atomlink/stellar-marketplace-go/pricing"
	"github.com/atomlink/stellar-marketplace-go/purchase"
	"github.com/atomlink/stellar-marketplace-go/recorder"
	"github.com/atomlink/stellar-marketplace-go/rpc"
	"github.com/atomlink/stellar-marketplace-go/utils"
	"github.com/atomlink/stellar-marketplace-go/wallet"
)

func main() {
	ctx := context.Background()
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	network, err := config.ResolveNetwork(config.DEPLOYMENT_ENVIRONMENT)
	if err != nil {
		log.Fatal().Err(err).Msg("bad deployment environment")
	}
	log.Info().Str("network", network.Name).Msg("starting marketplace orchestrator")

	rpcClient := rpc.NewClient(network.EffectiveRPCURL(), network.Timeout)
	if err := rpcClient.Health(ctx); err != nil {
		if config.DEPLOYMENT_ENVIRONMENT == "production" {
			log.Fatal().Err(err).Msg("soroban rpc unreachable")
		}
		log.Warn().Err(err).Msg("soroban rpc unreachable, continuing")
	}

	journal, err := utils.OpenIntentJournal(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open intent journal")
	}
	defer journal.Close()

	horizon := &horizonclient.Client{HorizonURL: network.HorizonURL}
	registry := wallet.DefaultRegistry(config.WALLET_BRIDGE_URL)
	sessions := wallet.NewSessionManager(registry, network, log)
	resolver := contracts.NewResolver(config.ContractsFor(config.DEPLOYMENT_ENVIRONMENT))
	prices := pricing.NewService(rpcClient, log)
	catalog := recorder.NewClient(config.CATALOG_API_URL, log)
	flow := purchase.NewFlow(sessions, rpcClient, horizon, catalog, journal, network, log)

	reconcileJob := recorder.NewReconcileJob(journal, catalog, time.Minute, log)
	go reconcileJob.Run(ctx)

	server := &api_handlers.Server{
		Wallet:   sessions,
		Resolver: resolver,
		Pricing:  prices,
		Flow:     flow,
		Catalog:  catalog,
		Journal:  journal,
		Log:      log,
	}

	r := chi.NewRouter()
	r.Mount("/api", server.Routes())

	addr := config.LISTEN_ADDR
	if addr == "" {
		addr = ":8080"
	}
	log.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
