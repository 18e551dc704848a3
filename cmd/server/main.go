package main

import (
	"context"
	"errors"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/chainduel/backend/internal/api"
	"github.com/chainduel/backend/internal/api/handlers"
	"github.com/chainduel/backend/internal/chain"
	"github.com/chainduel/backend/internal/config"
	"github.com/chainduel/backend/internal/database"
	"github.com/chainduel/backend/internal/escrow"
	"github.com/chainduel/backend/internal/identity"
	"github.com/chainduel/backend/internal/migrations"
	"github.com/chainduel/backend/internal/queue"
	"github.com/chainduel/backend/internal/redis"
	"github.com/chainduel/backend/internal/session"
	"github.com/chainduel/backend/internal/sweeper"
	"github.com/chainduel/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Escrow backend: a deployed contract when CHAIN_RPC_URL is set,
	// otherwise the in-process ledger for local play.
	var backend chain.Backend
	var fees handlers.FeeLedger
	if cfg.ChainRPCURL != "" {
		client, err := chain.Dial(cfg.ChainRPCURL, cfg.EscrowAddress)
		if err != nil {
			log.Fatalf("Failed to connect to chain RPC: %v", err)
		}
		defer client.Close()
		backend = client
		fees = remoteFees{client}
		log.Printf("[CHAIN] Using escrow contract %s via %s", cfg.EscrowAddress, cfg.ChainRPCURL)
	} else {
		ledger := escrow.New(escrow.Params{
			Owner:         common.HexToAddress(cfg.OwnerAddress),
			FeePercentage: cfg.FeePercentage,
			MinBet:        cfg.MinBetWei,
			MaxBet:        cfg.MaxBetWei,
			Timeout:       time.Duration(cfg.ChainTimeoutSeconds) * time.Second,
		}, escrow.NewMemBank(), clockwork.NewRealClock())
		backend = ledger
		fees = ledger
		log.Printf("[CHAIN] No CHAIN_RPC_URL configured; using in-process escrow ledger")
	}

	ctx := context.Background()

	qsvc := queue.NewService(db, rdb, cfg)
	ssvc := session.NewService(db, rdb, cfg)
	hub := ws.NewHub()

	ws.StartEventSubscriber(ctx, rdb, hub)
	go queue.StartMatcherWorker(ctx, qsvc, cfg)
	go session.StartReconciler(ctx, ssvc, backend)
	go sweeper.New(db, rdb, cfg, clockwork.NewRealClock()).Start(ctx)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api.SetupRoutes(router, api.Deps{
		Cfg:      cfg,
		Queue:    qsvc,
		Session:  ssvc,
		Hub:      hub,
		Resolver: identity.NewResolver(cfg, rdb),
		Fees:     fees,
	})

	log.Printf("Starting chainduel server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// remoteFees exposes the pool balance of a deployed contract. Withdrawal
// needs the owner's signing key, which this service never holds; the owner
// submits that transaction from their own wallet.
type remoteFees struct {
	*chain.Client
}

func (remoteFees) WithdrawFees(from, recipient common.Address, amount *big.Int) error {
	return errors.New("fee withdrawal requires the owner wallet; submit withdrawFees on the contract directly")
}
