package services

import (
	"fmt"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// ConsistencyValidator checks imported records and catalogs against each
// other before they reach the aggregator
type ConsistencyValidator struct{}

// NewConsistencyValidator creates a new consistency validator
func NewConsistencyValidator() *ConsistencyValidator {
	return &ConsistencyValidator{}
}

// ValidationResult contains the results of a consistency check
type ValidationResult struct {
	DuplicateLines []entities.TransactionRecord
	OrphanedItems  []string
	MixedGroups    []entities.OrderGroupID
	Errors         []string
}

// IsValid reports whether no errors were found
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ValidateRecords checks that every record references a known contract
// item, that committed line ids are unique within their order group, and
// that all records of a group agree on kind and status
func (v *ConsistencyValidator) ValidateRecords(records []entities.TransactionRecord, contracts []*entities.Contract) *ValidationResult {
	result := &ValidationResult{
		DuplicateLines: make([]entities.TransactionRecord, 0),
		OrphanedItems:  make([]string, 0),
		MixedGroups:    make([]entities.OrderGroupID, 0),
		Errors:         make([]string, 0),
	}

	for i, record := range records {
		if err := record.Validate(i); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	result.OrphanedItems = v.detectOrphanedItems(records, contracts)
	result.DuplicateLines = v.detectDuplicateLines(records)
	result.MixedGroups = v.detectMixedGroups(records)

	if len(result.OrphanedItems) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Records reference unknown catalog items: %v", result.OrphanedItems))
	}
	if len(result.DuplicateLines) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Found %d duplicate line records", len(result.DuplicateLines)))
	}
	for _, id := range result.MixedGroups {
		result.Errors = append(result.Errors, fmt.Sprintf("Order group %s has records with differing kind or status", id))
	}

	return result
}

// detectOrphanedItems finds contract/item pairs missing from the catalog
func (v *ConsistencyValidator) detectOrphanedItems(records []entities.TransactionRecord, contracts []*entities.Contract) []string {
	known := make(map[string]bool)
	for _, contract := range contracts {
		for _, item := range contract.Items {
			known[catalogKey(contract.ID, item.Name)] = true
		}
	}

	reported := make(map[string]bool)
	orphaned := make([]string, 0)
	for _, record := range records {
		key := catalogKey(record.ContractID, record.ItemName)
		if !known[key] && !reported[key] {
			reported[key] = true
			orphaned = append(orphaned, key)
		}
	}
	return orphaned
}

// detectDuplicateLines finds records sharing a committed line id within one
// order group. Uncommitted lines have no id and are never duplicates.
func (v *ConsistencyValidator) detectDuplicateLines(records []entities.TransactionRecord) []entities.TransactionRecord {
	seen := make(map[string]entities.TransactionRecord)
	duplicates := make([]entities.TransactionRecord, 0)

	for _, record := range records {
		if record.LineID == "" {
			continue
		}
		key := fmt.Sprintf("%s|%s", record.OrderGroupID, record.LineID)

		if existing, exists := seen[key]; exists {
			duplicates = append(duplicates, record)
			duplicates = append(duplicates, existing)
		} else {
			seen[key] = record
		}
	}

	return duplicates
}

// detectMixedGroups finds order groups whose records disagree on the
// group-level kind or status
func (v *ConsistencyValidator) detectMixedGroups(records []entities.TransactionRecord) []entities.OrderGroupID {
	first := make(map[entities.OrderGroupID]entities.TransactionRecord)
	reported := make(map[entities.OrderGroupID]bool)
	mixed := make([]entities.OrderGroupID, 0)

	for _, record := range records {
		head, exists := first[record.OrderGroupID]
		if !exists {
			first[record.OrderGroupID] = record
			continue
		}
		if (head.Kind != record.Kind || head.Status != record.Status) && !reported[record.OrderGroupID] {
			reported[record.OrderGroupID] = true
			mixed = append(mixed, record.OrderGroupID)
		}
	}
	return mixed
}

// ValidateCatalog validates that contract ids are unique and that every
// contract is internally consistent
func (v *ConsistencyValidator) ValidateCatalog(contracts []*entities.Contract) *ValidationResult {
	result := &ValidationResult{
		Errors: make([]string, 0),
	}

	seen := make(map[entities.ContractID]bool)
	duplicates := make([]entities.ContractID, 0)

	for _, contract := range contracts {
		if seen[contract.ID] {
			duplicates = append(duplicates, contract.ID)
		} else {
			seen[contract.ID] = true
		}
		if err := contract.Validate(); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if len(duplicates) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Duplicate contract ids found: %v", duplicates))
	}

	return result
}

func catalogKey(contractID entities.ContractID, name entities.ItemName) string {
	return fmt.Sprintf("%s/%s", contractID, name)
}
