// cmd/membership/main.go
package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"firstclub/internal/bootstrap"
	"firstclub/internal/config"
	"firstclub/internal/logging"
	"firstclub/internal/membership"
	"firstclub/internal/order"
	"firstclub/internal/plan"
	"firstclub/internal/tier"
	"firstclub/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to reach database", zap.Error(err))
	}
	if err := bootstrap.Ensure(ctx, db, log); err != nil {
		log.Fatal("failed to bootstrap database", zap.Error(err))
	}

	users := user.NewPostgresStore(db)
	tiers := tier.NewPostgresStore(db)
	plans := plan.NewPostgresStore(db)
	memberships := membership.NewPostgresStore(db)
	orders := order.NewPostgresStore(db)

	evaluator := tier.NewEvaluator(tiers, tier.DefaultStrategies(orders, log), log)

	membershipSvc := membership.NewService(memberships, users, plans, tiers, evaluator,
		membership.RetryConfig{Attempts: cfg.RetryAttempts, Interval: cfg.RetryInterval}, log)
	orderSvc := order.NewService(orders, users, memberships, tiers, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	membership.NewHandler(membershipSvc).Mount(r)
	order.NewHandler(orderSvc).Mount(r)
	plan.NewHandler(plans, tiers).Mount(r)

	log.Info("starting membership service", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
