package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

func loadedCatalog(t *testing.T, oilRemaining int64) *CatalogRepository {
	t.Helper()
	oil, err := entities.NewCatalogItem("CTR-1", "Mustard Oil", "MO-01", "Ltrs",
		decimal.NewFromInt(125), decimal.NewFromInt(oilRemaining),
		entities.ConversionTable{"Box": decimal.NewFromInt(12)})
	if err != nil {
		t.Fatalf("NewCatalogItem failed: %v", err)
	}
	rice, err := entities.NewCatalogItem("CTR-1", "Rice", "RC-01", "Kg",
		decimal.NewFromInt(60), decimal.NewFromInt(100), nil)
	if err != nil {
		t.Fatalf("NewCatalogItem failed: %v", err)
	}

	repo := NewCatalogRepository()
	contract := &entities.Contract{ID: "CTR-1", Counterparty: "Acme Traders", Items: []*entities.CatalogItem{oil, rice}}
	if err := repo.LoadContracts(context.Background(), []*entities.Contract{contract}); err != nil {
		t.Fatalf("LoadContracts failed: %v", err)
	}
	return repo
}

func remaining(t *testing.T, repo *CatalogRepository, name entities.ItemName) decimal.Decimal {
	t.Helper()
	item, err := repo.GetItem(context.Background(), "CTR-1", name)
	if err != nil {
		t.Fatalf("GetItem(%s) failed: %v", name, err)
	}
	return item.RemainingQuantity
}

func TestCatalogRepository_Lookup(t *testing.T) {
	repo := loadedCatalog(t, 500)
	ctx := context.Background()

	contract, err := repo.GetContract(ctx, "CTR-1")
	if err != nil {
		t.Fatalf("GetContract failed: %v", err)
	}
	if len(contract.Items) != 2 || contract.Items[0].Name != "Mustard Oil" {
		t.Errorf("Expected items in load order, got %v", contract.Items)
	}

	// Returned values are copies
	contract.Items[0].RemainingQuantity = decimal.Zero
	if got := remaining(t, repo, "Mustard Oil"); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected stored remaining 500, got %s", got)
	}

	if _, err := repo.GetContract(ctx, "CTR-9"); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown contract, got %v", err)
	}
	if _, err := repo.GetItem(ctx, "CTR-1", "Ghee"); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown item, got %v", err)
	}
}

func TestCatalogRepository_ApplyIsAllOrNothing(t *testing.T) {
	repo := loadedCatalog(t, 500)
	ctx := context.Background()

	err := repo.Apply(ctx, []entities.StockAdjustment{
		{ContractID: "CTR-1", ItemName: "Rice", Delta: decimal.NewFromInt(40)},
		{ContractID: "CTR-1", ItemName: "Mustard Oil", Delta: decimal.NewFromInt(600)},
	})
	var exceeds *entities.QuantityExceedsAllocationError
	if !errors.As(err, &exceeds) {
		t.Fatalf("Expected QuantityExceedsAllocationError, got %v", err)
	}
	if !exceeds.Ceiling.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected ceiling 500, got %s", exceeds.Ceiling)
	}
	if got := remaining(t, repo, "Rice"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected Rice untouched at 100, got %s", got)
	}

	err = repo.Apply(ctx, []entities.StockAdjustment{
		{ContractID: "CTR-1", ItemName: "Rice", Delta: decimal.NewFromInt(40)},
		{ContractID: "CTR-1", ItemName: "Mustard Oil", Delta: decimal.NewFromInt(-20)},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := remaining(t, repo, "Rice"); !got.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected Rice at 60, got %s", got)
	}
	if got := remaining(t, repo, "Mustard Oil"); !got.Equal(decimal.NewFromInt(520)) {
		t.Errorf("Expected Mustard Oil released to 520, got %s", got)
	}

	if err := repo.Apply(ctx, []entities.StockAdjustment{{ContractID: "CTR-2", ItemName: "Rice", Delta: decimal.NewFromInt(1)}}); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown contract, got %v", err)
	}
}

func TestCatalogRepository_ConcurrentCommitsNeverOversell(t *testing.T) {
	repo := loadedCatalog(t, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Apply(ctx, []entities.StockAdjustment{
				{ContractID: "CTR-1", ItemName: "Mustard Oil", Delta: decimal.NewFromInt(10)},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Errorf("Expected exactly 5 commits of 10 against 50, got %d", succeeded)
	}
	if got := remaining(t, repo, "Mustard Oil"); !got.IsZero() {
		t.Errorf("Expected nothing remaining, got %s", got)
	}
}

func TestSequenceRepository_ConcurrentReservations(t *testing.T) {
	repo := NewSequenceRepository()
	ctx := context.Background()
	date := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	results := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := repo.Reserve(ctx, "ORD", date)
			if err != nil {
				t.Errorf("Reserve failed: %v", err)
				return
			}
			results <- number
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for number := range results {
		if seen[number] {
			t.Errorf("Number %s reserved twice", number)
		}
		seen[number] = true
	}
	if !seen["ORD-20240401-0050"] {
		t.Error("Expected ORD-20240401-0050 to be reserved")
	}

	issued, _ := repo.Issued(ctx, "ORD", date)
	if len(issued) != 50 {
		t.Errorf("Expected 50 issued numbers, got %d", len(issued))
	}
}

func TestSequenceRepository_Seed(t *testing.T) {
	repo := NewSequenceRepository()
	repo.Seed("DISP-20240401-0001", "DISP-20240401-0002", "garbage")
	date := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	next, err := repo.Reserve(context.Background(), "DISP", date)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if next != "DISP-20240401-0003" {
		t.Errorf("Expected DISP-20240401-0003, got %s", next)
	}

	nextDay, _ := repo.Reserve(context.Background(), "DISP", date.AddDate(0, 0, 1))
	if nextDay != "DISP-20240402-0001" {
		t.Errorf("Expected DISP-20240402-0001, got %s", nextDay)
	}
}

func TestSequenceRepository_Numbers(t *testing.T) {
	repo := NewSequenceRepository()
	repo.Seed("DISP-20240401-0002", "ORD-20240401-0001", "DISP-20240401-0002", "DISP-20240401-0010")
	if _, err := repo.Reserve(context.Background(), "DISP", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	expected := []string{"DISP-20240331-0001", "DISP-20240401-0002", "DISP-20240401-0010", "ORD-20240401-0001"}
	numbers := repo.Numbers()
	if strings.Join(numbers, ",") != strings.Join(expected, ",") {
		t.Errorf("Expected %v, got %v", expected, numbers)
	}
}

func orderGroupFixture(id entities.OrderGroupID) *entities.OrderGroup {
	return &entities.OrderGroup{
		ID:        id,
		Kind:      entities.Order,
		CreatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:    entities.Pending,
		Allocations: []entities.ContractAllocation{
			{
				ContractID:   "CTR-1",
				Counterparty: "Acme Traders",
				Lines: []entities.LineItem{
					{ID: "L1", ItemName: "Mustard Oil", Unit: "Box", Quantity: decimal.NewFromInt(2), Rate: decimal.NewFromInt(1500), Amount: decimal.NewFromInt(3000)},
					{ID: "L2", ItemName: "Rice", Unit: "Kg", Quantity: decimal.NewFromInt(10), Rate: decimal.NewFromInt(60), Amount: decimal.NewFromInt(600)},
				},
			},
		},
	}
}

func TestOrderRepository_CommitReplacesGroup(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	if err := repo.CommitOrderGroup(ctx, orderGroupFixture("ORD-1")); err != nil {
		t.Fatalf("CommitOrderGroup failed: %v", err)
	}
	if err := repo.CommitOrderGroup(ctx, orderGroupFixture("ORD-2")); err != nil {
		t.Fatalf("CommitOrderGroup failed: %v", err)
	}

	edited := orderGroupFixture("ORD-1")
	edited.Allocations[0].Lines = edited.Allocations[0].Lines[:1]
	if err := repo.CommitOrderGroup(ctx, edited); err != nil {
		t.Fatalf("CommitOrderGroup failed: %v", err)
	}

	group, err := repo.GetOrderGroup(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("GetOrderGroup failed: %v", err)
	}
	if group.LineCount() != 1 {
		t.Errorf("Expected 1 line after edit, got %d", group.LineCount())
	}
	if !group.GrandTotal().Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Expected grand total 3000, got %s", group.GrandTotal())
	}

	records, _ := repo.LoadRecords(ctx, entities.Order)
	if len(records) != 3 {
		t.Errorf("Expected 3 records across both groups, got %d", len(records))
	}
	if others, _ := repo.LoadRecords(ctx, entities.SaleReturn); len(others) != 0 {
		t.Errorf("Expected no sale return records, got %d", len(others))
	}

	if _, err := repo.GetOrderGroup(ctx, "ORD-9"); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOrderRepository_ImportRejectsMalformed(t *testing.T) {
	repo := NewOrderRepository()
	err := repo.ImportRecords(context.Background(), []entities.TransactionRecord{
		{OrderGroupID: "ORD-1", ContractID: "CTR-1", ItemName: "Rice"},
		{OrderGroupID: "ORD-1", ItemName: "Oil"},
	})
	if !errors.Is(err, entities.ErrMalformedRecord) {
		t.Fatalf("Expected ErrMalformedRecord, got %v", err)
	}
	if records, _ := repo.LoadRecords(context.Background(), entities.Order); len(records) != 0 {
		t.Errorf("Expected nothing imported, got %d records", len(records))
	}
}

func TestDisputeRepository(t *testing.T) {
	repo := NewDisputeRepository()
	ctx := context.Background()
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	first, _ := entities.NewDisputeRecord("DISP-20240401-0001", "ORD-1", "INV-1", "short delivery", at)
	second, _ := entities.NewDisputeRecord("DISP-20240401-0002", "ORD-2", "", "damaged", at)

	if err := repo.SaveDispute(ctx, first); err != nil {
		t.Fatalf("SaveDispute failed: %v", err)
	}
	if err := repo.SaveDispute(ctx, second); err != nil {
		t.Fatalf("SaveDispute failed: %v", err)
	}
	if err := repo.SaveDispute(ctx, first); err == nil {
		t.Error("Expected duplicate dispute number to fail")
	}

	forOrd1, _ := repo.ListDisputes(ctx, "ORD-1")
	if len(forOrd1) != 1 || forOrd1[0].Reason != "short delivery" {
		t.Errorf("Expected one dispute for ORD-1, got %v", forOrd1)
	}
	all, _ := repo.ListDisputes(ctx, "")
	if len(all) != 2 {
		t.Errorf("Expected 2 disputes, got %d", len(all))
	}
}
