// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"gsid-registry/internal/audit"
	"gsid-registry/internal/center/match"
	httpapi "gsid-registry/internal/http"
	"gsid-registry/internal/identity/gsid"
	"gsid-registry/internal/identity/handler"
	identitymetrics "gsid-registry/internal/identity/metrics"
	"gsid-registry/internal/identity/models"
	"gsid-registry/internal/identity/service"
	"gsid-registry/internal/identity/store/postgres"
	"gsid-registry/internal/identity/validate"
	jwttoken "gsid-registry/internal/jwt_token"
	"gsid-registry/internal/platform/config"
	"gsid-registry/internal/platform/httpserver"
	"gsid-registry/internal/platform/logger"
	"gsid-registry/pkg/domain"
	"gsid-registry/pkg/platform/sentinel"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	st := postgres.New(db)
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	ref, err := config.LoadReference(cfg.ReferenceFile)
	if err != nil {
		return err
	}

	metrics := identitymetrics.New()
	validator := validate.New(validate.Config{
		PlaceholderPrefixes: ref.Validation.PlaceholderPrefixes,
		NumericIDTypes:      ref.Validation.NumericIDTypes,
	})

	outbox := audit.NewPostgresOutbox(db)
	svc := service.New(st, gsid.New(), validator, log,
		service.WithMetrics(metrics),
		service.WithAuditPublisher(audit.NewPublisher(outbox)),
	)

	if err := seedAliases(ctx, st, ref.Aliases, log); err != nil {
		return err
	}

	matcherOpts := []match.Option{}
	if ref.Matching.SimilarityThreshold > 0 {
		matcherOpts = append(matcherOpts, match.WithThreshold(ref.Matching.SimilarityThreshold))
	}
	centers := make([]match.Center, len(ref.Centers))
	for i, c := range ref.Centers {
		centers[i] = match.Center{ID: c.ID, Name: c.Name}
	}

	h := handler.New(svc, log, handler.WithCenterMatcher(match.New(centers, matcherOpts...)))
	router := httpapi.NewRouter(httpapi.Deps{
		Identity: h,
		Health: httpapi.HealthHandler(func(r *http.Request) (int, any) {
			status := svc.Health(r.Context())
			if status.Status != "healthy" {
				return http.StatusServiceUnavailable, status
			}
			return http.StatusOK, status
		}),
		Validator:  jwttoken.NewJWTService(cfg.JWTSigningKey, "gsid-registry", "centers"),
		APIKeyHash: cfg.APIKeyHash,
		Logger:     log,
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting gsid registry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := audit.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer producer.Close()
		worker := audit.NewWorker(outbox, producer, log, cfg.OutboxInterval)
		group.Go(func() error {
			if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			// Final flush so shutdown loses as little as possible.
			flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := worker.Drain(flushCtx); err != nil {
				log.Warn("final audit drain failed", "error", err)
			}
			return nil
		})
	} else {
		log.Warn("KAFKA_BROKERS unset; audit events stay in the outbox")
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// seedAliases loads the reference file's alias rows. Upserts keep restarts
// idempotent.
func seedAliases(ctx context.Context, st *postgres.Store, aliases []config.AliasRef, log *slog.Logger) error {
	for _, a := range aliases {
		g, err := domain.ParseGSID(a.GSID)
		if err != nil {
			log.Warn("skipping alias with malformed gsid", "alias", a.Alias, "error", err)
			continue
		}
		if err := st.UpsertAlias(ctx, models.Alias{Alias: a.Alias, GSID: g}); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				log.Warn("skipping alias for unregistered identity", "alias", a.Alias, "gsid", a.GSID)
				continue
			}
			return err
		}
	}
	if len(aliases) > 0 {
		log.Info("seeded reference aliases", "count", len(aliases))
	}
	return nil
}
