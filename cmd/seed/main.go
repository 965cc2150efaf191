package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/belle-designer/AppointmentSystem/internal/config"
	"github.com/belle-designer/AppointmentSystem/internal/db"
	"github.com/belle-designer/AppointmentSystem/internal/directory"
	"github.com/belle-designer/AppointmentSystem/internal/logger"
)

func main() {
	doctors := flag.Int("doctors", 40, "number of doctors to create")
	patients := flag.Int("patients", 2000, "number of patients to create")
	seed := flag.Uint64("seed", 0, "faker seed, 0 for random")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	log.Info("seed starting", zap.Int("doctors", *doctors), zap.Int("patients", *patients))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	f := gofakeit.New(*seed)

	if err := seedDoctors(ctx, pool, f, *doctors, log); err != nil {
		log.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedPatients(ctx, pool, f, *patients, log); err != nil {
		log.Fatal("seed patients", zap.Error(err))
	}

	log.Info("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, f *gofakeit.Faker, count int, log *zap.Logger) error {
	rows := make([][]any, 0, count)
	for i := 0; i < count; i++ {
		d := directory.FakeDoctor(f)
		rows = append(rows, []any{d.ID, d.Name, d.Specialization, d.CreatedAt, d.UpdatedAt})
	}

	n, err := pool.CopyFrom(ctx,
		pgx.Identifier{"doctors"},
		[]string{"id", "name", "specialization", "created_at", "updated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return err
	}

	log.Info("doctors seeded", zap.Int64("rows", n))
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, f *gofakeit.Faker, count int, log *zap.Logger) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		rows := make([][]any, 0, end-offset)
		for i := offset; i < end; i++ {
			p := directory.FakePatient(f)
			rows = append(rows, []any{p.ID, p.Name, p.Email, p.CreatedAt, p.UpdatedAt})
		}

		if _, err := pool.CopyFrom(ctx,
			pgx.Identifier{"patients"},
			[]string{"id", "name", "email", "created_at", "updated_at"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return err
		}

		log.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return nil
}
