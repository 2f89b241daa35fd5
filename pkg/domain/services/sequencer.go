package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// DocumentDateLayout is the date part of a document number
const DocumentDateLayout = "20060102"

// Document number prefixes
const (
	PrefixOrder         = "ORD"
	PrefixPurchaseOrder = "PO"
	PrefixSaleReturn    = "SR"
	PrefixDispute       = "DISP"
)

// DocumentSequencer parses and generates document numbers of the form
// PREFIX-YYYYMMDD-NNNN
type DocumentSequencer struct {
	numberPattern *regexp.Regexp
	suffixPattern *regexp.Regexp
}

// NewDocumentSequencer creates a sequencer with the default pattern
func NewDocumentSequencer() *DocumentSequencer {
	// Matches DISP-20240401-0003, ORD-20240401-12345, etc.
	pattern := regexp.MustCompile(`^([A-Za-z0-9]+)-(\d{8})-(\d+)$`)
	return &DocumentSequencer{
		numberPattern: pattern,
		suffixPattern: regexp.MustCompile(`^\d+$`),
	}
}

var defaultSequencer = NewDocumentSequencer()

// NextDocumentNumber returns the next number for prefix on date, given the
// numbers already issued. Only numbers sharing the day prefix count and
// unparsable suffixes count as 0. It performs no locking; callers racing on
// the same day must reserve numbers through a SequenceRepository.
func NextDocumentNumber(prefix string, existing []string, date time.Time) string {
	return defaultSequencer.Next(prefix, existing, date)
}

// DayPrefix returns the "PREFIX-YYYYMMDD-" part shared by every number
// issued on date
func DayPrefix(prefix string, date time.Time) string {
	return fmt.Sprintf("%s-%s-", prefix, date.Format(DocumentDateLayout))
}

// SplitDayPrefix returns the day prefix of an issued number. ok is false
// for numbers that do not follow the PREFIX-YYYYMMDD-NNNN layout.
func SplitDayPrefix(number string) (dayPrefix string, ok bool) {
	match := defaultSequencer.numberPattern.FindStringSubmatch(number)
	if match == nil {
		return "", false
	}
	return match[1] + "-" + match[2] + "-", true
}

// FormatDocumentNumber formats a number with a zero-padded suffix
func FormatDocumentNumber(prefix string, date time.Time, suffix int) string {
	return fmt.Sprintf("%s%04d", DayPrefix(prefix, date), suffix)
}

// Next returns the next number for prefix on date
func (ds *DocumentSequencer) Next(prefix string, existing []string, date time.Time) string {
	dayPrefix := DayPrefix(prefix, date)

	highest := 0
	for _, number := range existing {
		if !strings.HasPrefix(number, dayPrefix) {
			continue
		}
		digits := strings.TrimPrefix(number, dayPrefix)
		if !ds.suffixPattern.MatchString(digits) {
			continue
		}
		suffix, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		if suffix > highest {
			highest = suffix
		}
	}

	return FormatDocumentNumber(prefix, date, highest+1)
}

// CompareDocumentNumbers orders document numbers by prefix, date and
// numeric suffix, so ORD-20240401-10000 sorts after ORD-20240401-9999.
// Numbers outside the PREFIX-YYYYMMDD-NNNN layout compare as strings.
func CompareDocumentNumbers(a, b string) int {
	return defaultSequencer.CompareDocumentNumbers(a, b)
}

// CompareDocumentNumbers orders numbers by prefix, date, then numeric suffix
// Returns: -1 if a < b, 0 if equal, 1 if a > b
func (ds *DocumentSequencer) CompareDocumentNumbers(a, b string) int {
	if a == b {
		return 0
	}

	prefixA, dateA, numA, errA := ds.parseNumber(a)
	prefixB, dateB, numB, errB := ds.parseNumber(b)

	// If either parsing fails, fall back to string comparison
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}

	if prefixA != prefixB {
		return strings.Compare(prefixA, prefixB)
	}
	if dateA != dateB {
		return strings.Compare(dateA, dateB)
	}

	if numA < numB {
		return -1
	} else if numA > numB {
		return 1
	}
	return 0
}

// parseNumber extracts the prefix, date and numeric suffix of a number
func (ds *DocumentSequencer) parseNumber(number string) (string, string, int, error) {
	matches := ds.numberPattern.FindStringSubmatch(number)
	if len(matches) != 4 {
		return "", "", 0, fmt.Errorf("invalid document number format: %s", number)
	}

	num, err := strconv.Atoi(matches[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid numeric portion in document number %s: %v", number, err)
	}

	return matches[1], matches[2], num, nil
}

// PrefixFor returns the document prefix for an order group kind. Configured
// prefixes, keyed by lower-case kind name, take precedence over the defaults.
func PrefixFor(kind entities.DocumentKind, configured map[string]string) string {
	if prefix, ok := configured[strings.ToLower(kind.String())]; ok && prefix != "" {
		return prefix
	}
	switch kind {
	case entities.PurchaseOrder:
		return PrefixPurchaseOrder
	case entities.SaleReturn:
		return PrefixSaleReturn
	default:
		return PrefixOrder
	}
}
