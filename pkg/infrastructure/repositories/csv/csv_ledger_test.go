package csv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const disputesCSV = `number,order_group_id,invoice_number,reason,created_at
DISP-20240409-0001,ORD-20240401-0001,INV-77,short delivery,2024-04-09T11:00:00Z
DISP-20240409-0002,ORD-20240401-0001,,"damaged, leaking cans",2024-04-09T12:30:00Z
`

func TestLoader_ReadDisputes(t *testing.T) {
	disputes, err := NewLoader().ReadDisputes(strings.NewReader(disputesCSV))
	if err != nil {
		t.Fatalf("ReadDisputes failed: %v", err)
	}
	if len(disputes) != 2 {
		t.Fatalf("Expected 2 disputes, got %d", len(disputes))
	}

	first := disputes[0]
	if first.Number != "DISP-20240409-0001" || first.OrderGroupID != "ORD-20240401-0001" || first.InvoiceNumber != "INV-77" {
		t.Errorf("Unexpected first dispute: %+v", first)
	}
	if !first.CreatedAt.Equal(time.Date(2024, 4, 9, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected created_at 2024-04-09 11:00, got %s", first.CreatedAt)
	}
	if disputes[1].Reason != "damaged, leaking cans" {
		t.Errorf("Expected quoted reason, got %q", disputes[1].Reason)
	}
}

func TestLoader_ReadDisputes_Errors(t *testing.T) {
	header := strings.Join(DisputesHeader, ",") + "\n"

	tests := []struct {
		name  string
		input string
	}{
		{"empty_file", ""},
		{"bad_header", "number,group\nDISP-1,ORD-1\n"},
		{"bad_created_at", header + "DISP-20240409-0001,ORD-1,,late,yesterday\n"},
		{"missing_reason", header + "DISP-20240409-0001,ORD-1,,,2024-04-09\n"},
		{"missing_number", header + ",ORD-1,,late,2024-04-09\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLoader().ReadDisputes(strings.NewReader(tt.input)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLedger_HeaderOnlyFilesAreEmpty(t *testing.T) {
	dir := t.TempDir()
	disputesPath := filepath.Join(dir, "disputes.csv")
	numbersPath := filepath.Join(dir, "numbers.csv")

	if err := NewWriter().SaveDisputes(disputesPath, nil); err != nil {
		t.Fatalf("SaveDisputes failed: %v", err)
	}
	if err := NewWriter().SaveNumbers(numbersPath, nil); err != nil {
		t.Fatalf("SaveNumbers failed: %v", err)
	}

	disputes, err := NewLoader().LoadDisputes(disputesPath)
	if err != nil {
		t.Fatalf("LoadDisputes failed: %v", err)
	}
	if len(disputes) != 0 {
		t.Errorf("Expected no disputes, got %d", len(disputes))
	}
	numbers, err := NewLoader().LoadNumbers(numbersPath)
	if err != nil {
		t.Fatalf("LoadNumbers failed: %v", err)
	}
	if len(numbers) != 0 {
		t.Errorf("Expected no numbers, got %d", len(numbers))
	}
}

func TestLedger_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	disputes, err := NewLoader().ReadDisputes(strings.NewReader(disputesCSV))
	if err != nil {
		t.Fatalf("ReadDisputes failed: %v", err)
	}

	disputesPath := filepath.Join(dir, "disputes.csv")
	if err := NewWriter().SaveDisputes(disputesPath, disputes); err != nil {
		t.Fatalf("SaveDisputes failed: %v", err)
	}
	reread, err := NewLoader().LoadDisputes(disputesPath)
	if err != nil {
		t.Fatalf("LoadDisputes failed: %v", err)
	}
	if len(reread) != 2 || reread[1].Number != "DISP-20240409-0002" || !reread[1].CreatedAt.Equal(disputes[1].CreatedAt) {
		t.Errorf("Expected disputes to survive a save, got %+v", reread)
	}

	numbersPath := filepath.Join(dir, "numbers.csv")
	issued := []string{"PO-20240409-0001", "PO-20240409-0002"}
	if err := NewWriter().SaveNumbers(numbersPath, issued); err != nil {
		t.Fatalf("SaveNumbers failed: %v", err)
	}
	numbers, err := NewLoader().LoadNumbers(numbersPath)
	if err != nil {
		t.Fatalf("LoadNumbers failed: %v", err)
	}
	if strings.Join(numbers, ",") != strings.Join(issued, ",") {
		t.Errorf("Expected %v, got %v", issued, numbers)
	}

	if _, err := NewLoader().ReadNumbers(strings.NewReader("number\n \n")); err == nil {
		t.Error("Expected error for a blank number")
	}
	if _, err := NewLoader().LoadNumbers(filepath.Join(dir, "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}
