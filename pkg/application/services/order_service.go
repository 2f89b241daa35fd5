package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/tradeops/pkg/application/dto"
	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/domain/repositories"
	domainservices "github.com/vsinha/tradeops/pkg/domain/services"
	"github.com/vsinha/tradeops/pkg/infrastructure/clock"
	"github.com/vsinha/tradeops/pkg/infrastructure/events"
)

// OrderServiceConfig wires an OrderService to its collaborators
type OrderServiceConfig struct {
	Catalog   repositories.CatalogRepository
	Orders    repositories.OrderRepository
	Sequences repositories.SequenceRepository
	Disputes  repositories.DisputeRepository

	// Events receives one event per submission, edit, status change, stock
	// movement and dispute. Optional.
	Events events.Publisher
	Clock  clock.Clock
	Logger *slog.Logger

	// Prefixes overrides document prefixes, keyed by lower-case kind name
	// ("order", "purchaseorder", "salereturn") or "dispute"
	Prefixes map[string]string
}

// OrderService runs the order group lifecycle: draft resolution, submission,
// editing, status changes and disputes. The domain engine stays stateless;
// every piece of shared state lives behind the repositories.
type OrderService struct {
	catalog    repositories.CatalogRepository
	orders     repositories.OrderRepository
	sequences  repositories.SequenceRepository
	disputes   repositories.DisputeRepository
	events     events.Publisher
	clock      clock.Clock
	logger     *slog.Logger
	prefixes   map[string]string
	reconciler *domainservices.Reconciler
	newLineID  func() string
}

// NewOrderService creates an order service. Every repository is required.
func NewOrderService(cfg OrderServiceConfig) (*OrderService, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog repository cannot be nil")
	}
	if cfg.Orders == nil {
		return nil, fmt.Errorf("order repository cannot be nil")
	}
	if cfg.Sequences == nil {
		return nil, fmt.Errorf("sequence repository cannot be nil")
	}
	if cfg.Disputes == nil {
		return nil, fmt.Errorf("dispute repository cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &OrderService{
		catalog:    cfg.Catalog,
		orders:     cfg.Orders,
		sequences:  cfg.Sequences,
		disputes:   cfg.Disputes,
		events:     cfg.Events,
		clock:      clk,
		logger:     logger,
		prefixes:   cfg.Prefixes,
		reconciler: domainservices.NewReconciler(cfg.Catalog),
		newLineID:  uuid.NewString,
	}, nil
}

// LoadOrderGroups folds every stored record of the given kind into order
// groups, in first-seen order
func (s *OrderService) LoadOrderGroups(ctx context.Context, kind entities.DocumentKind) ([]entities.OrderGroup, error) {
	records, err := s.orders.LoadRecords(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s records: %w", kind, err)
	}

	groups, err := domainservices.Aggregate(records)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s records: %w", kind, err)
	}
	return groups, nil
}

// View returns the merged display rows of every order group of a kind
func (s *OrderService) View(ctx context.Context, kind entities.DocumentKind) ([]domainservices.DisplayRow, error) {
	groups, err := s.LoadOrderGroups(ctx, kind)
	if err != nil {
		return nil, err
	}
	return domainservices.MergeForDisplay(groups), nil
}

// GetOrderGroup returns one committed order group
func (s *OrderService) GetOrderGroup(ctx context.Context, id entities.OrderGroupID) (*entities.OrderGroup, error) {
	return s.orders.GetOrderGroup(ctx, id)
}

// ResolveLine handles one edit event on a form: selecting an item, changing
// its unit or changing its quantity. Nothing is committed.
func (s *OrderService) ResolveLine(
	ctx context.Context,
	kind entities.DocumentKind,
	req domainservices.LineRequest,
) (domainservices.ResolvedLine, error) {
	return s.reconciler.Resolve(ctx, kind, req)
}

// PrefixFor returns the document prefix used for a kind
func (s *OrderService) PrefixFor(kind entities.DocumentKind) string {
	return domainservices.PrefixFor(kind, s.prefixes)
}

// DisputePrefix returns the document prefix used for disputes
func (s *OrderService) DisputePrefix() string {
	if prefix := s.prefixes["dispute"]; prefix != "" {
		return prefix
	}
	return domainservices.PrefixDispute
}

// PeekDocumentNumber returns the number the next reservation for prefix on
// date would receive, without reserving it
func (s *OrderService) PeekDocumentNumber(ctx context.Context, prefix string, date time.Time) (string, error) {
	issued, err := s.sequences.Issued(ctx, prefix, date)
	if err != nil {
		return "", err
	}
	return domainservices.NextDocumentNumber(prefix, issued, date), nil
}

// SubmitOrderGroup validates a draft, reserves a document number for it,
// commits its stock and stores it. Every recoverable line error is returned
// at once in a ValidationError; nothing is committed unless every line is
// valid.
func (s *OrderService) SubmitOrderGroup(ctx context.Context, draft dto.DraftOrderGroup) (*entities.OrderGroup, error) {
	kind, err := entities.ParseDocumentKind(draft.Kind)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolveDraft(ctx, kind, draft, nil)
	if err != nil {
		s.logger.Warn("submission rejected", "kind", kind, "error", err)
		return nil, err
	}

	adjustments := make([]entities.StockAdjustment, 0, draft.LineCount())
	for _, alloc := range resolved.allocations {
		for i := range alloc.Lines {
			alloc.Lines[i].ID = s.newLineID()
			adjustments = append(adjustments, entities.StockAdjustment{
				ContractID: alloc.ContractID,
				ItemName:   alloc.Lines[i].ItemName,
				Delta:      alloc.Lines[i].Quantity,
			})
		}
	}

	if err := s.catalog.Apply(ctx, adjustments); err != nil {
		s.logger.Warn("stock commit failed", "kind", kind, "error", err)
		return nil, fmt.Errorf("failed to commit stock: %w", err)
	}

	now := s.clock.Now()
	number, err := s.sequences.Reserve(ctx, s.PrefixFor(kind), now)
	if err != nil {
		s.compensate(ctx, adjustments)
		return nil, fmt.Errorf("failed to reserve document number: %w", err)
	}

	group := &entities.OrderGroup{
		ID:              entities.OrderGroupID(number),
		Kind:            kind,
		CreatedAt:       now,
		FulfillmentDate: resolved.fulfillmentDate,
		Status:          entities.Pending,
		Allocations:     resolved.allocations,
	}
	if err := s.orders.CommitOrderGroup(ctx, group); err != nil {
		s.compensate(ctx, adjustments)
		return nil, fmt.Errorf("failed to store order group %s: %w", group.ID, err)
	}

	s.logger.Info("order group submitted",
		"id", group.ID,
		"kind", kind,
		"allocations", len(group.Allocations),
		"lines", group.LineCount(),
		"grand_total", group.GrandTotal().StringFixed(domainservices.CurrencyPlaces))

	s.publish(events.NewOrderSubmittedEvent(group, now))
	s.publishStock(group.ID, adjustments, now)
	return group, nil
}

// EditOrderGroup replaces the lines of a Pending order group with a draft.
// Each line's ceiling includes the quantity it already holds; quantity
// changes are committed or released as deltas and lines or allocations
// missing from the draft are released, all in one atomic catalog update.
func (s *OrderService) EditOrderGroup(ctx context.Context, id entities.OrderGroupID, draft dto.DraftOrderGroup) (*entities.OrderGroup, error) {
	existing, err := s.orders.GetOrderGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Status.IsEditable() {
		return nil, fmt.Errorf("order group %s is %s: %w", id, existing.Status, entities.ErrOrderNotEditable)
	}
	if strings.TrimSpace(draft.Kind) != "" {
		kind, err := entities.ParseDocumentKind(draft.Kind)
		if err != nil {
			return nil, err
		}
		if kind != existing.Kind {
			return nil, fmt.Errorf("order group %s is a %s and cannot become a %s", id, existing.Kind, kind)
		}
	}

	held := heldLines(existing)
	resolved, err := s.resolveDraft(ctx, existing.Kind, draft, held)
	if err != nil {
		s.logger.Warn("edit rejected", "id", id, "error", err)
		return nil, err
	}

	var adjustments []entities.StockAdjustment
	kept := make(map[string]bool, len(held))
	for _, alloc := range resolved.allocations {
		for i := range alloc.Lines {
			line := &alloc.Lines[i]
			previous, committed := held[line.ID]
			if !committed {
				line.ID = s.newLineID()
			} else {
				kept[line.ID] = true
			}
			if committed && previous.contractID == alloc.ContractID && previous.itemName == line.ItemName {
				adjustments = append(adjustments, entities.StockAdjustment{
					ContractID: alloc.ContractID,
					ItemName:   line.ItemName,
					Delta:      line.Quantity.Sub(previous.quantity),
				})
				continue
			}
			if committed {
				adjustments = append(adjustments, previous.release())
			}
			adjustments = append(adjustments, entities.StockAdjustment{
				ContractID: alloc.ContractID,
				ItemName:   line.ItemName,
				Delta:      line.Quantity,
			})
		}
	}

	var removed []string
	for _, alloc := range existing.Allocations {
		for _, line := range alloc.Lines {
			if !kept[line.ID] {
				removed = append(removed, line.ID)
				adjustments = append(adjustments, held[line.ID].release())
			}
		}
	}

	net := entities.NetAdjustments(adjustments)
	if err := s.catalog.Apply(ctx, net); err != nil {
		s.logger.Warn("stock update failed", "id", id, "error", err)
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}

	updated := existing.Clone()
	updated.FulfillmentDate = resolved.fulfillmentDate
	updated.Allocations = resolved.allocations
	if err := s.orders.CommitOrderGroup(ctx, updated); err != nil {
		s.compensate(ctx, net)
		return nil, fmt.Errorf("failed to store order group %s: %w", id, err)
	}

	now := s.clock.Now()
	s.logger.Info("order group edited",
		"id", id,
		"lines", updated.LineCount(),
		"removed", len(removed),
		"grand_total", updated.GrandTotal().StringFixed(domainservices.CurrencyPlaces))

	s.publish(events.NewOrderEditedEvent(existing, updated, removed, now))
	s.publishStock(id, net, now)
	return updated, nil
}

// ChangeStatus moves an order group along its fulfillment lifecycle.
// Cancelling releases every quantity the group holds.
func (s *OrderService) ChangeStatus(ctx context.Context, id entities.OrderGroupID, status entities.OrderStatus) (*entities.OrderGroup, error) {
	existing, err := s.orders.GetOrderGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("order group %s cannot move from %s to %s: %w",
			id, existing.Status, status, entities.ErrInvalidStatusTransition)
	}

	var releases []entities.StockAdjustment
	if status == entities.Cancelled {
		for _, line := range heldLines(existing) {
			releases = append(releases, line.release())
		}
		releases = entities.NetAdjustments(releases)
		if err := s.catalog.Apply(ctx, releases); err != nil {
			return nil, fmt.Errorf("failed to release stock: %w", err)
		}
	}

	updated := existing.Clone()
	updated.Status = status
	if err := s.orders.CommitOrderGroup(ctx, updated); err != nil {
		s.compensate(ctx, releases)
		return nil, fmt.Errorf("failed to store order group %s: %w", id, err)
	}

	now := s.clock.Now()
	s.logger.Info("order group status changed", "id", id, "from", existing.Status, "to", status)
	s.publish(events.NewOrderStatusChangedEvent(id, existing.Status, status, now))
	s.publishStock(id, releases, now)
	return updated, nil
}

// RaiseDispute records a dispute against a delivered order group under a
// freshly reserved dispute number
func (s *OrderService) RaiseDispute(ctx context.Context, id entities.OrderGroupID, invoiceNumber, reason string) (*entities.DisputeRecord, error) {
	group, err := s.orders.GetOrderGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if group.Status != entities.Delivered {
		return nil, fmt.Errorf("order group %s is %s: %w", id, group.Status, entities.ErrNotDelivered)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("dispute reason cannot be empty")
	}

	now := s.clock.Now()
	number, err := s.sequences.Reserve(ctx, s.DisputePrefix(), now)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve dispute number: %w", err)
	}

	dispute, err := entities.NewDisputeRecord(number, id, strings.TrimSpace(invoiceNumber), strings.TrimSpace(reason), now)
	if err != nil {
		return nil, err
	}
	if err := s.disputes.SaveDispute(ctx, dispute); err != nil {
		return nil, fmt.Errorf("failed to save dispute: %w", err)
	}

	s.logger.Info("dispute raised", "number", dispute.Number, "order_group", id)
	s.publish(events.NewDisputeRaisedEvent(dispute))
	return dispute, nil
}

// ListDisputes returns the disputes raised against an order group, or all
// disputes when id is empty, ordered by dispute number
func (s *OrderService) ListDisputes(ctx context.Context, id entities.OrderGroupID) ([]*entities.DisputeRecord, error) {
	disputes, err := s.disputes.ListDisputes(ctx, id)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(disputes, func(a, b *entities.DisputeRecord) int {
		return domainservices.CompareDocumentNumbers(a.Number, b.Number)
	})
	return disputes, nil
}

// compensate gives back stock committed by a step that was later undone
func (s *OrderService) compensate(ctx context.Context, applied []entities.StockAdjustment) {
	if len(applied) == 0 {
		return
	}
	reversed := make([]entities.StockAdjustment, len(applied))
	for i, adj := range applied {
		reversed[i] = adj
		reversed[i].Delta = adj.Delta.Neg()
	}
	if err := s.catalog.Apply(context.WithoutCancel(ctx), reversed); err != nil {
		s.logger.Error("stock compensation failed", "adjustments", len(reversed), "error", err)
	}
}

func (s *OrderService) publish(event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.AppendEvent(event.StreamID(), event); err != nil {
		s.logger.Error("failed to publish event", "type", event.Type(), "stream", event.StreamID(), "error", err)
	}
}

func (s *OrderService) publishStock(id entities.OrderGroupID, adjustments []entities.StockAdjustment, at time.Time) {
	for _, adj := range adjustments {
		if adj.Delta.IsZero() {
			continue
		}
		s.publish(events.NewStockEvent(id, adj, at))
	}
}
