package yamlfile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vsinha/tradeops/pkg/application/dto"
	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// CatalogFile is the on-disk shape of a catalog. Numbers are quoted strings
// so that rates and quantities keep their exact decimal value.
type CatalogFile struct {
	Contracts []ContractEntry `yaml:"contracts"`
}

type ContractEntry struct {
	ID           string      `yaml:"id"`
	Counterparty string      `yaml:"counterparty"`
	Items        []ItemEntry `yaml:"items"`
}

type ItemEntry struct {
	Name        string            `yaml:"name"`
	Code        string            `yaml:"code,omitempty"`
	BaseUnit    string            `yaml:"base_unit"`
	BaseRate    string            `yaml:"base_rate"`
	Remaining   string            `yaml:"remaining"`
	Conversions map[string]string `yaml:"conversions,omitempty"`
}

// LoadCatalog loads contracts from a YAML file
func LoadCatalog(filename string) ([]*entities.Contract, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", filename, err)
	}
	return ReadCatalog(bytes.NewReader(data))
}

// ReadCatalog decodes and validates a catalog document
func ReadCatalog(r io.Reader) ([]*entities.Contract, error) {
	var file CatalogFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	if len(file.Contracts) == 0 {
		return nil, fmt.Errorf("catalog YAML must define at least one contract")
	}

	contracts := make([]*entities.Contract, 0, len(file.Contracts))
	for ci, entry := range file.Contracts {
		contract := &entities.Contract{
			ID:           entities.ContractID(entry.ID),
			Counterparty: entry.Counterparty,
		}
		for ii, itemEntry := range entry.Items {
			item, err := itemEntry.toCatalogItem(contract.ID)
			if err != nil {
				return nil, fmt.Errorf("contract %d item %d: %w", ci+1, ii+1, err)
			}
			contract.Items = append(contract.Items, item)
		}
		if err := contract.Validate(); err != nil {
			return nil, fmt.Errorf("contract %d: %w", ci+1, err)
		}
		contracts = append(contracts, contract)
	}

	return contracts, nil
}

func (e ItemEntry) toCatalogItem(contractID entities.ContractID) (*entities.CatalogItem, error) {
	baseRate, err := decimal.NewFromString(e.BaseRate)
	if err != nil {
		return nil, fmt.Errorf("invalid base_rate: %q", e.BaseRate)
	}
	remaining, err := decimal.NewFromString(e.Remaining)
	if err != nil {
		return nil, fmt.Errorf("invalid remaining: %q", e.Remaining)
	}

	conversions := make(entities.ConversionTable, len(e.Conversions))
	for unit, factor := range e.Conversions {
		value, err := decimal.NewFromString(factor)
		if err != nil {
			return nil, fmt.Errorf("invalid conversion factor for %s: %q", unit, factor)
		}
		conversions[entities.UnitOfMeasure(unit)] = value
	}

	return entities.NewCatalogItem(
		contractID,
		entities.ItemName(e.Name),
		e.Code,
		entities.UnitOfMeasure(e.BaseUnit),
		baseRate,
		remaining,
		conversions,
	)
}

// WriteCatalog encodes contracts in the layout ReadCatalog accepts
func WriteCatalog(w io.Writer, contracts []*entities.Contract) error {
	file := CatalogFile{Contracts: make([]ContractEntry, len(contracts))}
	for i, contract := range contracts {
		entry := ContractEntry{ID: string(contract.ID), Counterparty: contract.Counterparty}
		for _, item := range contract.Items {
			itemEntry := ItemEntry{
				Name:      string(item.Name),
				Code:      item.Code,
				BaseUnit:  string(item.BaseUnit),
				BaseRate:  item.BaseRate.String(),
				Remaining: item.RemainingQuantity.String(),
			}
			for unit, factor := range item.Conversions {
				if unit == item.BaseUnit {
					continue
				}
				if itemEntry.Conversions == nil {
					itemEntry.Conversions = make(map[string]string)
				}
				itemEntry.Conversions[string(unit)] = factor.String()
			}
			entry.Items = append(entry.Items, itemEntry)
		}
		file.Contracts[i] = entry
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(file); err != nil {
		return fmt.Errorf("failed to write catalog YAML: %w", err)
	}
	return encoder.Close()
}

// LoadDraft loads a draft order group from a YAML file
func LoadDraft(filename string) (*dto.DraftOrderGroup, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read draft file %s: %w", filename, err)
	}
	return ReadDraft(bytes.NewReader(data))
}

// ReadDraft decodes a draft order group. Line contents are validated later
// by the order service, which reports every bad line at once.
func ReadDraft(r io.Reader) (*dto.DraftOrderGroup, error) {
	var draft dto.DraftOrderGroup
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&draft); err != nil {
		return nil, fmt.Errorf("failed to parse draft YAML: %w", err)
	}
	if len(draft.Allocations) == 0 {
		return nil, fmt.Errorf("draft must contain at least one contract allocation")
	}
	return &draft, nil
}
