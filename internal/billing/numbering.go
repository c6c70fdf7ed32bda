package billing

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Document number prefixes. Two uppercase letters, followed by YYMMDD and a
// three-digit day sequence, e.g. SL240115007.
const (
	PrefixSale           = "SL"
	PrefixService        = "SR"
	PrefixInvoice        = "SI"
	PrefixServiceInvoice = "SC"
	PrefixSaleInvoice    = "SA"
	PrefixRefundNote     = "RF"
)

// NumberPattern is the wire-level contract for document numbers.
var NumberPattern = regexp.MustCompile(`^[A-Z]{2}\d{6}\d{3}$`)

// Sequencer mints the next day sequence for a prefix. Implementations must
// make the read-increment step atomic with the record insert that consumes
// it; see repository.go.
type Sequencer interface {
	NextSequence(ctx context.Context, prefix string, date time.Time) (int, error)
}

// FormatNumber renders a document number from its parts.
func FormatNumber(prefix string, date time.Time, seq int) string {
	return fmt.Sprintf("%s%s%03d", prefix, date.Format("060102"), seq)
}

// NumberPrefix picks the prefix for a new transaction. Invoices carry a
// sub-prefix describing where they came from.
func NumberPrefix(kind Kind, source *Transaction) string {
	switch kind {
	case KindSale:
		return PrefixSale
	case KindService:
		return PrefixService
	case KindInvoice:
		if source == nil {
			return PrefixInvoice
		}
		switch source.Kind {
		case KindService:
			return PrefixServiceInvoice
		case KindSale:
			if source.Status == StatusReturned {
				return PrefixRefundNote
			}
			return PrefixSaleInvoice
		}
		return PrefixInvoice
	}
	return PrefixInvoice
}

// NextNumber mints a full document number for the prefix and date.
func NextNumber(ctx context.Context, seq Sequencer, prefix string, date time.Time) (string, error) {
	n, err := seq.NextSequence(ctx, prefix, date)
	if err != nil {
		return "", fmt.Errorf("next sequence for %s: %w", prefix, err)
	}
	return FormatNumber(prefix, date, n), nil
}
