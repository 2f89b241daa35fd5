package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	testhelpers "github.com/vsinha/tradeops/pkg/application/services/testing"
	"github.com/vsinha/tradeops/pkg/domain/entities"
	domainservices "github.com/vsinha/tradeops/pkg/domain/services"
	"github.com/vsinha/tradeops/pkg/infrastructure/clock"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/yamlfile"
)

var today = time.Date(2024, 4, 9, 11, 0, 0, 0, time.UTC)

type fixture struct {
	dir      string
	config   string
	catalog  string
	records  string
	disputes string
	numbers  string
}

// newFixture writes the trading catalog and records to a temp dir, plus a
// config selecting the given backend
func newFixture(t *testing.T, backend string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		config:   filepath.Join(dir, "tradeops.yaml"),
		catalog:  filepath.Join(dir, "catalog.yaml"),
		records:  filepath.Join(dir, "records.csv"),
		disputes: filepath.Join(dir, "disputes.csv"),
		numbers:  filepath.Join(dir, "numbers.csv"),
	}

	var catalog bytes.Buffer
	if err := yamlfile.WriteCatalog(&catalog, testhelpers.BuildTradingContracts()); err != nil {
		t.Fatalf("WriteCatalog failed: %v", err)
	}
	writeFile(t, f.catalog, catalog.String())

	data := testhelpers.BuildTradingTestData()
	records, err := data.Orders.LoadRecords(context.Background(), entities.Order)
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if err := csv.NewWriter().SaveRecords(f.records, records); err != nil {
		t.Fatalf("SaveRecords failed: %v", err)
	}

	var cfg string
	switch backend {
	case "sqlite":
		cfg = "storage:\n  backend: sqlite\n  sqlite:\n    path: " + filepath.Join(dir, "tradeops.db") + "\n"
	default:
		cfg = "storage:\n  backend: memory\nfiles:\n  catalog: " + f.catalog + "\n  records: " + f.records +
			"\n  disputes: " + f.disputes + "\n  numbers: " + f.numbers + "\n"
	}
	writeFile(t, f.config, cfg)
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// run executes one CLI invocation with a fresh environment
func (f *fixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	env := &environment{clock: clock.Fake(today), stderr: &stderr}

	cmd := newRootCommand(env)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", f.config}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestView_Text(t *testing.T) {
	f := newFixture(t, "memory")

	stdout, _, err := f.run(t, "view")
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}

	for _, want := range []string{"ORD-20240401-0001", "ORD-20240401-0002", "3450.00", "6000.00", "Delta Foods"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected view output to contain %q, got:\n%s", want, stdout)
		}
	}

	stdout, _, err = f.run(t, "view", "--kind", "SaleReturn")
	if err != nil {
		t.Fatalf("view of sale returns failed: %v", err)
	}
	if !strings.Contains(stdout, "No order groups found.") {
		t.Errorf("Expected empty view, got:\n%s", stdout)
	}
}

func TestView_XLSX(t *testing.T) {
	f := newFixture(t, "memory")

	if _, _, err := f.run(t, "view", "--format", "xlsx"); err == nil {
		t.Error("Expected xlsx without --output to fail")
	}

	path := filepath.Join(f.dir, "orders.xlsx")
	stdout, _, err := f.run(t, "view", "--format", "xlsx", "--output", path)
	if err != nil {
		t.Fatalf("view xlsx failed: %v", err)
	}
	if !strings.Contains(stdout, "Wrote 3 rows") {
		t.Errorf("Expected row count in output, got %q", stdout)
	}

	book, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer book.Close()

	value, err := book.GetCellValue("Sheet1", "A2")
	if err != nil {
		t.Fatalf("GetCellValue failed: %v", err)
	}
	if value != "ORD-20240401-0001" {
		t.Errorf("Expected A2 to be ORD-20240401-0001, got %q", value)
	}
}

func TestResolve(t *testing.T) {
	f := newFixture(t, "memory")

	stdout, _, err := f.run(t, "resolve", "--contract", "CTR-1", "--item", "Mustard Oil", "--unit", "Box", "--qty", "2")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	for _, want := range []string{"Rate:     1500.00", "Amount:   3000.00", "Ceiling:  500", "Line is valid"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected %q in output, got:\n%s", want, stdout)
		}
	}

	stdout, _, err = f.run(t, "resolve", "--contract", "CTR-1", "--item", "Mustard Oil", "--qty", "600")
	var exceeds *entities.QuantityExceedsAllocationError
	if !errors.As(err, &exceeds) {
		t.Fatalf("Expected QuantityExceedsAllocationError, got %v", err)
	}
	if !strings.Contains(stdout, "Ceiling:  500") {
		t.Errorf("Expected ceiling to be reported, got:\n%s", stdout)
	}

	stdout, stderr, err := f.run(t, "resolve", "--contract", "CTR-1", "--item", "Mustard Oil", "--unit", "Drum", "--qty", "2")
	if err != nil {
		t.Fatalf("resolve with unknown unit failed: %v", err)
	}
	if !strings.Contains(stdout, "Rate:     125.00") {
		t.Errorf("Expected base rate for unknown unit, got:\n%s", stdout)
	}
	if !strings.Contains(stderr, "no conversion for Drum") {
		t.Errorf("Expected unknown unit warning, got stderr:\n%s", stderr)
	}

	_, stderr, err = f.run(t, "resolve", "--contract", "CTR-1", "--item", "Mustard Oil", "--unit", "Box", "--qty", "1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if strings.Contains(stderr, "no conversion") {
		t.Errorf("Expected no warning for a known unit, got stderr:\n%s", stderr)
	}

	_, _, err = f.run(t, "resolve", "--contract", "CTR-9", "--item", "Rice", "--qty", "1")
	var notFound *entities.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected NotFoundError for unknown contract, got %v", err)
	}
}

func TestNextNumber(t *testing.T) {
	f := newFixture(t, "memory")

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"pure", []string{"--existing", "ORD-20240401-0001,ORD-20240401-0007", "--date", "2024-04-01"}, "ORD-20240401-0008"},
		{"pure_other_day", []string{"--existing", "ORD-20240331-0004", "--date", "2024-04-01"}, "ORD-20240401-0001"},
		{"peek", []string{"--date", "2024-04-01"}, "ORD-20240401-0003"},
		{"peek_today", []string{"--kind", "PurchaseOrder"}, "PO-20240409-0001"},
		{"prefix", []string{"--prefix", "DISP"}, "DISP-20240409-0001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := f.run(t, append([]string{"next-number"}, tt.args...)...)
			if err != nil {
				t.Fatalf("next-number failed: %v", err)
			}
			if strings.TrimSpace(stdout) != tt.expected {
				t.Errorf("Expected %s, got %q", tt.expected, stdout)
			}
		})
	}

	if _, _, err := f.run(t, "next-number", "--date", "04/01/2024"); err == nil {
		t.Error("Expected error for malformed --date")
	}
}

func TestSubmit_PersistsToFiles(t *testing.T) {
	f := newFixture(t, "memory")
	draft := filepath.Join(f.dir, "draft.yaml")
	writeFile(t, draft, `kind: Order
fulfillment_date: "2024-04-15"
allocations:
  - contract_id: CTR-1
    lines:
      - item: Mustard Oil
        unit: Box
        quantity: "3"
`)

	stdout, _, err := f.run(t, "submit", draft)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !strings.Contains(stdout, "Submitted ORD-20240409-0001") {
		t.Errorf("Expected submitted number in output, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Grand total: 4500.00") {
		t.Errorf("Expected grand total 4500.00, got:\n%s", stdout)
	}

	contracts, err := yamlfile.LoadCatalog(f.catalog)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	oil, err := contracts[0].Item("Mustard Oil")
	if err != nil {
		t.Fatalf("Item lookup failed: %v", err)
	}
	if !oil.RemainingQuantity.Equal(decimal.NewFromInt(497)) {
		t.Errorf("Expected remaining 497 after commit, got %s", oil.RemainingQuantity)
	}

	stdout, _, err = f.run(t, "view")
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if !strings.Contains(stdout, "ORD-20240409-0001") {
		t.Errorf("Expected the submitted group to be stored, got:\n%s", stdout)
	}

	stdout, _, err = f.run(t, "next-number")
	if err != nil {
		t.Fatalf("next-number failed: %v", err)
	}
	if strings.TrimSpace(stdout) != "ORD-20240409-0002" {
		t.Errorf("Expected ORD-20240409-0002, got %q", stdout)
	}
}

func TestSubmit_ReportsEveryLineError(t *testing.T) {
	f := newFixture(t, "memory")
	draft := filepath.Join(f.dir, "draft.yaml")
	writeFile(t, draft, `kind: Order
allocations:
  - contract_id: CTR-1
    lines:
      - item: Mustard Oil
        quantity: abc
      - item: Rice
        quantity: "9999"
`)
	before, err := os.ReadFile(f.records)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	_, stderr, err := f.run(t, "submit", draft)
	if err == nil {
		t.Fatal("Expected submit to fail")
	}
	if err.Error() != "draft rejected: 2 invalid line(s)" {
		t.Errorf("Expected rejection summary, got %q", err.Error())
	}
	if !strings.Contains(stderr, "2 invalid line(s)") || !strings.Contains(stderr, "Rice") {
		t.Errorf("Expected each line error on stderr, got:\n%s", stderr)
	}

	after, err := os.ReadFile(f.records)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("Expected records file to be untouched by a rejected draft")
	}
}

func TestEdit(t *testing.T) {
	f := newFixture(t, "memory")

	stdout, _, err := f.run(t, "edit", "ORD-20240401-0002", "--show")
	if err != nil {
		t.Fatalf("edit --show failed: %v", err)
	}
	if !strings.Contains(stdout, "line-3") || !strings.Contains(stdout, "Rice") {
		t.Errorf("Expected draft with line-3 Rice, got:\n%s", stdout)
	}

	draft := filepath.Join(f.dir, "edit.yaml")
	writeFile(t, draft, `allocations:
  - contract_id: CTR-1
    lines:
      - id: line-3
        item: Rice
        unit: Kg
        quantity: "150"
`)
	stdout, _, err = f.run(t, "edit", "ORD-20240401-0002", draft)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if !strings.Contains(stdout, "Edited ORD-20240401-0002") || !strings.Contains(stdout, "Grand total: 9000.00") {
		t.Errorf("Unexpected edit output:\n%s", stdout)
	}

	_, _, err = f.run(t, "edit", "ORD-20240401-0001", draft)
	if !errors.Is(err, entities.ErrOrderNotEditable) {
		t.Errorf("Expected ErrOrderNotEditable for a delivered group, got %v", err)
	}

	if _, _, err := f.run(t, "edit", "ORD-20240401-0002"); err == nil {
		t.Error("Expected edit without a draft file to fail")
	}
}

func TestImportStatusAndDisputes_SQLite(t *testing.T) {
	f := newFixture(t, "sqlite")

	stdout, _, err := f.run(t, "import", "--catalog", f.catalog, "--records", f.records)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(stdout, "Imported 2 contract(s)") || !strings.Contains(stdout, "Imported 3 record(s) in 2 order group(s)") {
		t.Errorf("Unexpected import output:\n%s", stdout)
	}

	if _, _, err := f.run(t, "import", "--records", f.records); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected re-import of the same order groups to fail, got %v", err)
	}

	stdout, _, err = f.run(t, "next-number", "--date", "2024-04-01")
	if err != nil {
		t.Fatalf("next-number failed: %v", err)
	}
	if strings.TrimSpace(stdout) != "ORD-20240401-0003" {
		t.Errorf("Expected imported numbers to be seeded, got %q", stdout)
	}

	stdout, _, err = f.run(t, "status", "ORD-20240401-0002", "cancelled")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(stdout, "ORD-20240401-0002 is now Cancelled") {
		t.Errorf("Unexpected status output: %q", stdout)
	}

	_, _, err = f.run(t, "status", "ORD-20240401-0002", "Approved")
	if !errors.Is(err, entities.ErrInvalidStatusTransition) {
		t.Errorf("Expected ErrInvalidStatusTransition, got %v", err)
	}

	_, _, err = f.run(t, "dispute", "raise", "ORD-20240401-0002", "--reason", "late")
	if !errors.Is(err, entities.ErrNotDelivered) {
		t.Errorf("Expected ErrNotDelivered, got %v", err)
	}

	stdout, _, err = f.run(t, "dispute", "raise", "ORD-20240401-0001", "--invoice", "INV-7", "--reason", "short shipment")
	if err != nil {
		t.Fatalf("dispute raise failed: %v", err)
	}
	if !strings.Contains(stdout, "Raised DISP-20240409-0001 against ORD-20240401-0001") {
		t.Errorf("Unexpected dispute output: %q", stdout)
	}

	stdout, _, err = f.run(t, "dispute", "list", "ORD-20240401-0001")
	if err != nil {
		t.Fatalf("dispute list failed: %v", err)
	}
	if !strings.Contains(stdout, "DISP-20240409-0001") || !strings.Contains(stdout, "short shipment") {
		t.Errorf("Expected the raised dispute to be listed, got:\n%s", stdout)
	}
}

func TestDisputes_MemoryPersistsAcrossRuns(t *testing.T) {
	f := newFixture(t, "memory")

	for _, expected := range []string{"DISP-20240409-0001", "DISP-20240409-0002"} {
		stdout, _, err := f.run(t, "dispute", "raise", "ORD-20240401-0001", "--reason", "short shipment")
		if err != nil {
			t.Fatalf("dispute raise failed: %v", err)
		}
		if !strings.Contains(stdout, "Raised "+expected) {
			t.Errorf("Expected %s, got %q", expected, stdout)
		}
	}

	stdout, _, err := f.run(t, "dispute", "list")
	if err != nil {
		t.Fatalf("dispute list failed: %v", err)
	}
	first := strings.Index(stdout, "DISP-20240409-0001")
	second := strings.Index(stdout, "DISP-20240409-0002")
	if first < 0 || second < first {
		t.Errorf("Expected both disputes in number order, got:\n%s", stdout)
	}

	disputes, err := csv.NewLoader().LoadDisputes(f.disputes)
	if err != nil {
		t.Fatalf("LoadDisputes failed: %v", err)
	}
	if len(disputes) != 2 {
		t.Errorf("Expected 2 disputes on disk, got %d", len(disputes))
	}

	if _, _, err := f.run(t, "dispute", "raise", "ORD-20240401-0002", "--reason", "late"); !errors.Is(err, entities.ErrNotDelivered) {
		t.Errorf("Expected ErrNotDelivered, got %v", err)
	}
}

func TestNextNumber_ReserveMemoryPersists(t *testing.T) {
	f := newFixture(t, "memory")

	for _, expected := range []string{"PO-20240409-0001", "PO-20240409-0002"} {
		stdout, _, err := f.run(t, "next-number", "--kind", "PurchaseOrder", "--reserve")
		if err != nil {
			t.Fatalf("next-number --reserve failed: %v", err)
		}
		if strings.TrimSpace(stdout) != expected {
			t.Errorf("Expected %s, got %q", expected, stdout)
		}
	}

	stdout, _, err := f.run(t, "next-number", "--kind", "PurchaseOrder")
	if err != nil {
		t.Fatalf("next-number failed: %v", err)
	}
	if strings.TrimSpace(stdout) != "PO-20240409-0003" {
		t.Errorf("Expected reserved numbers to be skipped, got %q", stdout)
	}
}

func TestMemoryBackend_RefusesUnsavedChanges(t *testing.T) {
	f := newFixture(t, "memory")
	writeFile(t, f.config, "storage:\n  backend: memory\nfiles:\n  catalog: "+f.catalog+"\n")

	tests := []struct {
		name string
		args []string
		key  string
	}{
		{"dispute_raise", []string{"dispute", "raise", "ORD-20240401-0001", "--reason", "late"}, "files.disputes"},
		{"reserve", []string{"next-number", "--reserve"}, "files.numbers"},
		{"status", []string{"status", "ORD-20240401-0001", "Cancelled"}, "files.records"},
		{"import_records", []string{"import", "--records", f.records}, "files.records"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("Expected error naming %s, got %v", tt.key, err)
			}
		})
	}

	if _, err := os.Stat(f.disputes); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected no disputes file to be written, got %v", err)
	}
	stdout, _, err := f.run(t, "next-number")
	if err != nil {
		t.Fatalf("next-number failed: %v", err)
	}
	if strings.TrimSpace(stdout) != "ORD-20240409-0001" {
		t.Errorf("Expected peek to work without files, got %q", stdout)
	}
}

func TestImport_RequiresInput(t *testing.T) {
	f := newFixture(t, "memory")
	if _, _, err := f.run(t, "import"); err == nil {
		t.Error("Expected import without files to fail")
	}
}

func TestGenerate_Reproducible(t *testing.T) {
	f := newFixture(t, "memory")
	first := filepath.Join(f.dir, "first")
	second := filepath.Join(f.dir, "second")

	for _, dir := range []string{first, second} {
		stdout, _, err := f.run(t, "generate", "--output", dir, "--groups", "25", "--seed", "42", "--date", "2024-04-01")
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if !strings.Contains(stdout, "Scenario generated successfully") {
			t.Errorf("Unexpected generate output:\n%s", stdout)
		}
	}

	for _, name := range []string{"catalog.yaml", "records.csv"} {
		a, err := os.ReadFile(filepath.Join(first, name))
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		b, err := os.ReadFile(filepath.Join(second, name))
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("Expected %s to be identical for the same seed", name)
		}
	}

	contracts, err := yamlfile.LoadCatalog(filepath.Join(first, "catalog.yaml"))
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	records, err := csv.NewLoader().LoadRecords(filepath.Join(first, "records.csv"))
	if err != nil {
		t.Fatalf("LoadRecords failed: %v", err)
	}
	if len(contracts) != 3 {
		t.Errorf("Expected 3 contracts, got %d", len(contracts))
	}
	if ids := groupIDs(records); len(ids) != 25 {
		t.Errorf("Expected 25 order groups, got %d", len(ids))
	}
	result := domainservices.NewConsistencyValidator().ValidateRecords(records, contracts)
	if !result.IsValid() {
		t.Errorf("Expected generated records to be consistent, got %v", result.Errors)
	}

	if _, _, err := f.run(t, "generate", "--output", first, "--items", "50"); err == nil {
		t.Error("Expected error for more items than commodities")
	}
}

func TestRoot_InvalidConfig(t *testing.T) {
	f := newFixture(t, "memory")
	writeFile(t, f.config, "storage:\n  backend: mongo\n")

	_, _, err := f.run(t, "view")
	if err == nil || !strings.Contains(err.Error(), "invalid storage backend") {
		t.Errorf("Expected invalid backend error, got %v", err)
	}
}
