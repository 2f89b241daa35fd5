package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vsinha/tradeops/pkg/application/services"
	"github.com/vsinha/tradeops/pkg/infrastructure/clock"
	"github.com/vsinha/tradeops/pkg/infrastructure/config"
	"github.com/vsinha/tradeops/pkg/infrastructure/events"
)

// environment is the state shared by every subcommand of one invocation.
// Storage is opened on first use so that pure commands never touch it.
type environment struct {
	configPath string
	verbose    bool

	clock  clock.Clock
	stderr io.Writer

	config  *config.Config
	logger  *slog.Logger
	store   *storage
	service *services.OrderService
	events  *events.InMemoryEventStore
	dirty   bool
}

// NewRootCommand creates the tradeops command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(&environment{clock: clock.Real(), stderr: os.Stderr})
}

func newRootCommand(env *environment) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tradeops",
		Short: "Order groups, contract allocations and document numbers",
		Long: `tradeops manages order groups drawn on counterparty contracts.

It prices lines in any unit a contract item converts to, commits and
releases contract stock, issues per-day document numbers and shows order
groups as merged tables in text, JSON, CSV, XLSX or HTML.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&env.configPath, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&env.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newViewCommand(env),
		newResolveCommand(env),
		newNextNumberCommand(env),
		newSubmitCommand(env),
		newEditCommand(env),
		newStatusCommand(env),
		newDisputeCommand(env),
		newImportCommand(env),
		newGenerateCommand(),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (e *environment) setup() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if e.verbose {
		level = slog.LevelDebug
	}

	e.config = cfg
	e.logger = slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// orderService opens storage and builds the order service on first use
func (e *environment) orderService(ctx context.Context) (*services.OrderService, error) {
	if e.service != nil {
		return e.service, nil
	}

	store, err := e.storage(ctx)
	if err != nil {
		return nil, err
	}

	e.events = events.NewInMemoryEventStore(e.logger)
	stockTypes := []string{events.StockCommittedEvent, events.StockReleasedEvent}
	if err := e.events.Subscribe(stockTypes, &events.HandlerFunc{Types: stockTypes, Fn: e.logStock}); err != nil {
		return nil, err
	}

	service, err := services.NewOrderService(services.OrderServiceConfig{
		Catalog:   store.catalog,
		Orders:    store.orders,
		Sequences: store.sequences,
		Disputes:  store.disputes,
		Events:    e.events,
		Clock:     e.clock,
		Logger:    e.logger,
		Prefixes:  e.config.Prefixes,
	})
	if err != nil {
		return nil, err
	}
	e.service = service
	return service, nil
}

func (e *environment) storage(ctx context.Context) (*storage, error) {
	if e.store != nil {
		return e.store, nil
	}
	store, err := openStorage(ctx, e.config, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", e.config.Storage.Backend, err)
	}
	e.logger.Debug("storage opened", "backend", store.backend)
	e.store = store
	return store, nil
}

// run opens storage, calls fn and closes storage again. Changed state is
// saved only when fn succeeds.
func (e *environment) run(ctx context.Context, fn func(ctx context.Context, store *storage, service *services.OrderService) error) (err error) {
	defer func() {
		err = errors.Join(err, e.finish(ctx, err == nil))
	}()

	service, err := e.orderService(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, e.store, service)
}

// markDirty records that the invocation changed stored state
func (e *environment) markDirty() {
	e.dirty = true
}

func (e *environment) finish(ctx context.Context, save bool) error {
	if e.store == nil {
		return nil
	}
	if e.events != nil {
		e.events.Wait()
	}

	var saveErr error
	if save && e.dirty {
		saveErr = e.store.save(ctx)
	}
	closeErr := e.store.close()
	e.store = nil
	e.service = nil
	e.dirty = false
	return errors.Join(saveErr, closeErr)
}

func (e *environment) logStock(_ context.Context, event events.Event) error {
	moved, ok := event.Data().(events.StockMoved)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", event.Type(), event.Data())
	}
	e.logger.Info(event.Type(),
		"order_group", moved.OrderGroupID,
		"contract", moved.ContractID,
		"item", moved.ItemName,
		"quantity", moved.Quantity)
	return nil
}
