// Package codec encodes catalog values for storage backends. Conversion
// tables are CBOR maps of unit name to decimal string, encoded with Core
// Deterministic Encoding so equal tables always produce equal bytes.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeConversions serializes a conversion table
func EncodeConversions(table entities.ConversionTable) ([]byte, error) {
	wire := make(map[string]string, len(table))
	for unit, factor := range table {
		wire[string(unit)] = factor.String()
	}
	data, err := encMode.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding conversions: %w", err)
	}
	return data, nil
}

// DecodeConversions parses bytes written by EncodeConversions
func DecodeConversions(data []byte) (entities.ConversionTable, error) {
	var wire map[string]string
	if err := decMode.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decoding conversions: %w", err)
	}
	table := make(entities.ConversionTable, len(wire))
	for unit, factor := range wire {
		value, err := decimal.NewFromString(factor)
		if err != nil {
			return nil, fmt.Errorf("decoding conversion factor for %s: %w", unit, err)
		}
		table[entities.UnitOfMeasure(unit)] = value
	}
	return table, nil
}
