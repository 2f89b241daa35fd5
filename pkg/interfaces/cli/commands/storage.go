package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/domain/repositories"
	"github.com/vsinha/tradeops/pkg/infrastructure/config"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/postgres"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/sqlitestore"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/yamlfile"
)

// storage is one opened backend. seed records externally issued document
// numbers; save writes the memory backend back to its files and is a no-op
// for the database backends.
type storage struct {
	backend   string
	files     config.FilesConfig
	catalog   repositories.CatalogRepository
	orders    repositories.OrderRepository
	sequences repositories.SequenceRepository
	disputes  repositories.DisputeRepository

	seed  func(ctx context.Context, numbers []string) error
	save  func(ctx context.Context) error
	close func() error
}

// openStorage opens the configured backend
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err := sqlitestore.Open(sqlitestore.Config{
			Path:     cfg.Storage.SQLite.Path,
			PoolSize: cfg.Storage.SQLite.PoolSize,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return &storage{
			backend:   config.BackendSQLite,
			catalog:   store,
			orders:    store,
			sequences: store,
			disputes:  store,
			seed: func(ctx context.Context, numbers []string) error {
				return store.Seed(ctx, numbers...)
			},
			save:  func(context.Context) error { return nil },
			close: store.Close,
		}, nil

	case config.BackendPostgres:
		store, err := postgres.Open(ctx, postgres.Config{
			DSN:          cfg.Storage.Postgres.DSN,
			MaxOpenConns: cfg.Storage.Postgres.MaxOpenConns,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return &storage{
			backend:   config.BackendPostgres,
			catalog:   store,
			orders:    store,
			sequences: store,
			disputes:  store,
			seed: func(ctx context.Context, numbers []string) error {
				return store.Seed(ctx, numbers...)
			},
			save:  func(context.Context) error { return nil },
			close: store.Close,
		}, nil

	default:
		return openMemoryStorage(ctx, cfg.Files, logger)
	}
}

// openMemoryStorage builds in-memory repositories loaded from the
// configured files. Records, disputes and numbers files that do not exist
// yet are created on the first save.
func openMemoryStorage(ctx context.Context, files config.FilesConfig, logger *slog.Logger) (*storage, error) {
	catalogRepo := memory.NewCatalogRepository()
	orderRepo := memory.NewOrderRepository()
	sequenceRepo := memory.NewSequenceRepository()
	disputeRepo := memory.NewDisputeRepository()

	s := &storage{
		backend:   config.BackendMemory,
		files:     files,
		catalog:   catalogRepo,
		orders:    orderRepo,
		sequences: sequenceRepo,
		disputes:  disputeRepo,
		seed: func(_ context.Context, numbers []string) error {
			sequenceRepo.Seed(numbers...)
			return nil
		},
		close: func() error { return nil },
	}

	if files.Catalog != "" {
		contracts, err := loadCatalogFile(files.Catalog)
		if err != nil {
			return nil, err
		}
		if err := catalogRepo.LoadContracts(ctx, contracts); err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		logger.Debug("catalog loaded", "file", files.Catalog, "contracts", len(contracts))
	}

	if files.Records != "" {
		records, err := csv.NewLoader().LoadRecords(files.Records)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug("records file not found, starting empty", "file", files.Records)
		case err != nil:
			return nil, err
		default:
			if err := orderRepo.ImportRecords(ctx, records); err != nil {
				return nil, err
			}
			sequenceRepo.Seed(groupIDs(records)...)
			logger.Debug("records loaded", "file", files.Records, "records", len(records))
		}
	}

	if files.Disputes != "" {
		disputes, err := csv.NewLoader().LoadDisputes(files.Disputes)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug("disputes file not found, starting empty", "file", files.Disputes)
		case err != nil:
			return nil, err
		default:
			for _, dispute := range disputes {
				if err := disputeRepo.SaveDispute(ctx, dispute); err != nil {
					return nil, fmt.Errorf("failed to load disputes file %s: %w", files.Disputes, err)
				}
				sequenceRepo.Seed(dispute.Number)
			}
			logger.Debug("disputes loaded", "file", files.Disputes, "disputes", len(disputes))
		}
	}

	if files.Numbers != "" {
		numbers, err := csv.NewLoader().LoadNumbers(files.Numbers)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug("numbers file not found, starting empty", "file", files.Numbers)
		case err != nil:
			return nil, err
		default:
			sequenceRepo.Seed(numbers...)
			logger.Debug("numbers loaded", "file", files.Numbers, "numbers", len(numbers))
		}
	}

	s.save = func(ctx context.Context) error {
		if files.Records != "" {
			records, err := allRecords(ctx, orderRepo)
			if err != nil {
				return err
			}
			if err := csv.NewWriter().SaveRecords(files.Records, records); err != nil {
				return err
			}
		}
		if files.Catalog != "" {
			contracts, err := catalogRepo.ListContracts(ctx)
			if err != nil {
				return err
			}
			if err := saveCatalogFile(files.Catalog, contracts); err != nil {
				return err
			}
		}
		if files.Disputes != "" {
			disputes, err := disputeRepo.ListDisputes(ctx, "")
			if err != nil {
				return err
			}
			if err := csv.NewWriter().SaveDisputes(files.Disputes, disputes); err != nil {
				return err
			}
		}
		if files.Numbers != "" {
			if err := csv.NewWriter().SaveNumbers(files.Numbers, sequenceRepo.Numbers()); err != nil {
				return err
			}
		}
		return nil
	}
	return s, nil
}

// requireFile fails on the memory backend when the file that keeps state
// across invocations is not configured. key is the files.* config key.
func (s *storage) requireFile(key, path string) error {
	if s.backend != config.BackendMemory || path != "" {
		return nil
	}
	return fmt.Errorf("memory backend has no files.%s configured; set it (or %s_FILES_%s) or use the sqlite or postgres backend",
		key, config.EnvPrefix, strings.ToUpper(key))
}

// loadCatalogFile reads a catalog from CSV or YAML, chosen by extension
func loadCatalogFile(path string) ([]*entities.Contract, error) {
	if isCSV(path) {
		return csv.NewLoader().LoadContracts(path)
	}
	return yamlfile.LoadCatalog(path)
}

func saveCatalogFile(path string, contracts []*entities.Contract) error {
	var buf bytes.Buffer
	var err error
	if isCSV(path) {
		err = csv.NewWriter().WriteContracts(&buf, contracts)
	} else {
		err = yamlfile.WriteCatalog(&buf, contracts)
	}
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write catalog file %s: %w", path, err)
	}
	return nil
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

func allRecords(ctx context.Context, orders repositories.OrderRepository) ([]entities.TransactionRecord, error) {
	var records []entities.TransactionRecord
	for _, kind := range entities.DocumentKinds() {
		batch, err := orders.LoadRecords(ctx, kind)
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
	return records, nil
}

// groupIDs returns the distinct order group ids of records in first-seen
// order
func groupIDs(records []entities.TransactionRecord) []string {
	seen := make(map[entities.OrderGroupID]bool)
	var ids []string
	for _, record := range records {
		if seen[record.OrderGroupID] {
			continue
		}
		seen[record.OrderGroupID] = true
		ids = append(ids, string(record.OrderGroupID))
	}
	return ids
}
