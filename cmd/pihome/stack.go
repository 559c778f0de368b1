package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/pihome/internal/audit"
	"github.com/nerrad567/pihome/internal/automation"
	"github.com/nerrad567/pihome/internal/entity"
	"github.com/nerrad567/pihome/internal/gpio"
	"github.com/nerrad567/pihome/internal/infrastructure/config"
	"github.com/nerrad567/pihome/internal/infrastructure/database"
	"github.com/nerrad567/pihome/internal/infrastructure/logging"
	"github.com/nerrad567/pihome/migrations"
)

// stack is the entity and rule layer shared by every command that reads
// entities.
type stack struct {
	db        *database.DB
	pins      gpio.ReadCloser
	kinds     *entity.Kinds
	registry  *entity.Registry
	resolver  *entity.Resolver
	evaluator *automation.Evaluator
	audit     *audit.SQLiteRepository
}

// openStack opens and migrates the database and wires the entity stack
// over the configured GPIO driver. The caller closes the stack.
func openStack(ctx context.Context, cfg *config.Config, log *logging.Logger) (*stack, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")

	pins, err := gpio.New(cfg.GPIO)
	if err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("initialising gpio: %w", err)
	}
	log.Info("gpio initialised", "driver", cfg.GPIO.Driver, "read_timeout", cfg.GetGPIOReadTimeout())

	store := entity.NewSQLiteStore(db.DB)

	kinds := entity.NewKinds(pins)
	kinds.SetLogger(log)

	registry := entity.NewRegistry(store)
	registry.SetLogger(log)

	resolver := entity.NewResolver(store, kinds)
	resolver.SetLogger(log)

	evaluator := automation.NewEvaluator(resolver, nil)
	if err := evaluator.RegisterSatisfied(kinds); err != nil {
		pins.Close() //nolint:errcheck // Already failing
		db.Close()   //nolint:errcheck // Already failing
		return nil, fmt.Errorf("registering rule member: %w", err)
	}
	registry.SetConditionValidator(evaluator.Operators().ValidateCondition)

	return &stack{
		db:        db,
		pins:      pins,
		kinds:     kinds,
		registry:  registry,
		resolver:  resolver,
		evaluator: evaluator,
		audit:     audit.NewSQLiteRepository(db.DB),
	}, nil
}

// Close releases the GPIO driver and closes the database.
func (s *stack) Close() error {
	return errors.Join(s.pins.Close(), s.db.Close())
}
