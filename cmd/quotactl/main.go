// quotactl é o binário administrativo do subsistema de cota: consulta de uso,
// reset, histórico e limpeza de retenção, direto contra os stores.
//
// Uso:
//
//	quotactl info <user>
//	quotactl reset <user> <window-key>      (window-key: YYYY-MM-DD ou ALL)
//	quotactl history <user> <from> <to>     (datas: YYYY-MM-DD)
//	quotactl cleanup <before>               (remove linhas diárias zeradas anteriores à data)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"usage-quota/quota"
	"usage-quota/quota/application"
	"usage-quota/quota/domain"
	"usage-quota/quota/infra"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := readConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var counter domain.CounterStore
	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			// Contador fora do ar não bloqueia administração: o serviço
			// degrada para o ledger, o reset é a exceção (precisa apagar a
			// chave) e falha na hora com erro claro.
			logger.Warn("redis unreachable, operating ledger-first", zap.Error(err))
		}
		counter = infra.NewRedisCounterStore(rdb, infra.WithCounterPrefix(cfg.keyPrefix))
	} else {
		logger.Warn("QUOTA_REDIS_ADDR empty, using in-memory counter (single process only)")
		counter = infra.NewMemoryCounterStore()
	}

	db, err := sqlx.Open(cfg.ledgerDriver, cfg.ledgerDSN)
	if err != nil {
		logger.Fatal("ledger open failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	ledger := infra.NewSQLLedger(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		logger.Fatal("ledger schema failed", zap.Error(err))
	}

	resolver := application.NewResolver(
		application.WithDailyLimit(domain.TierPremium, cfg.premiumDailyLimit),
	)
	svc := quota.New(quota.Options{
		Counter:  counter,
		Ledger:   ledger,
		Tiers:    infra.NewStaticTierSource(cfg.defaultTier),
		Resolver: resolver,
		Location: cfg.location,
		Logger:   logger,
	})
	defer svc.Flush()

	if err := run(ctx, svc, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *application.Service, cmd string, args []string) error {
	switch cmd {
	case "info":
		if len(args) != 1 {
			return errors.New("usage: quotactl info <user>")
		}
		info, err := svc.UsageInfo(ctx, domain.UserID(args[0]))
		if err != nil {
			return err
		}
		return printJSON(info)

	case "reset":
		if len(args) != 2 {
			return errors.New("usage: quotactl reset <user> <window-key>")
		}
		return svc.Reset(ctx, domain.UserID(args[0]), args[1])

	case "history":
		if len(args) != 3 {
			return errors.New("usage: quotactl history <user> <from> <to>")
		}
		from, err := time.Parse("2006-01-02", args[1])
		if err != nil {
			return fmt.Errorf("invalid from date %q: %w", args[1], err)
		}
		to, err := time.Parse("2006-01-02", args[2])
		if err != nil {
			return fmt.Errorf("invalid to date %q: %w", args[2], err)
		}
		recs, err := svc.History(ctx, domain.UserID(args[0]), from, to)
		if err != nil {
			return err
		}
		return printJSON(recs)

	case "cleanup":
		if len(args) != 1 {
			return errors.New("usage: quotactl cleanup <before-date>")
		}
		cutoff, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("invalid cutoff date %q: %w", args[0], err)
		}
		n, err := svc.PurgeZeroUsage(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d rows\n", n)
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: quotactl <info|reset|history|cleanup> [args]

env:
  QUOTA_REDIS_ADDR       endereço do redis (vazio = contador em memória)
  QUOTA_REDIS_PASSWORD
  QUOTA_REDIS_DB
  QUOTA_KEY_PREFIX       prefixo das chaves do contador (padrão quota:usage)
  QUOTA_DEFAULT_TIER     tier aplicado a usuários sem registro (padrão free)
  QUOTA_PREMIUM_DAILY    limite diário do tier premium (padrão 5)
  QUOTA_TZ               fuso da meia-noite local (padrão do sistema)
  LEDGER_DRIVER          postgres | sqlite3 (padrão sqlite3)
  LEDGER_DSN             DSN do banco (padrão ./quota.db)`)
}

type config struct {
	redisAddr     string
	redisPassword string
	redisDB       int
	keyPrefix     string

	ledgerDriver string
	ledgerDSN    string

	defaultTier       domain.Tier
	premiumDailyLimit int64
	location          *time.Location
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.redisAddr = os.Getenv("QUOTA_REDIS_ADDR")
	cfg.redisPassword = os.Getenv("QUOTA_REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("QUOTA_REDIS_DB", 0)
	cfg.keyPrefix = getenvDefault("QUOTA_KEY_PREFIX", "quota:usage")

	cfg.ledgerDriver = getenvDefault("LEDGER_DRIVER", "sqlite3")
	cfg.ledgerDSN = getenvDefault("LEDGER_DSN", "./quota.db")
	if cfg.ledgerDriver != "sqlite3" && cfg.ledgerDriver != "postgres" {
		return config{}, fmt.Errorf("LEDGER_DRIVER must be sqlite3 or postgres, got %q", cfg.ledgerDriver)
	}

	cfg.defaultTier = domain.Tier(getenvDefault("QUOTA_DEFAULT_TIER", string(domain.TierFree)))
	cfg.premiumDailyLimit = int64(getenvIntDefault("QUOTA_PREMIUM_DAILY", 5))
	if cfg.premiumDailyLimit < 1 {
		return config{}, errors.New("QUOTA_PREMIUM_DAILY must be >= 1")
	}

	cfg.location = time.Local
	if tz := os.Getenv("QUOTA_TZ"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return config{}, fmt.Errorf("invalid QUOTA_TZ: %w", err)
		}
		cfg.location = loc
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
