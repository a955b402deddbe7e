package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Header is the expected CSV header for bank exports.
const Header = "date,description,amount,category"

const (
	numFields   = 4
	dateFormat  = "2006-01-02"
	colDate     = 0
	colDesc     = 1
	colAmount   = 2
	colCategory = 3
)

// Row is one parsed bank CSV line. Negative amounts are expenses, positive
// amounts income.
type Row struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Category    string
}

// ParseRows reads a bank export CSV. The first row must match Header.
func ParseRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading bank CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row (want %q)", Header)
	}
	if got := strings.Join(records[0], ","); !strings.EqualFold(got, Header) {
		return nil, fmt.Errorf("unexpected header %q (want %q)", got, Header)
	}

	var rows []Row
	for i, rec := range records[1:] {
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	date, err := time.Parse(dateFormat, rec[colDate])
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", rec[colDate], err)
	}

	amount, err := decimal.NewFromString(rec[colAmount])
	if err != nil {
		return Row{}, fmt.Errorf("parsing amount %q: %w", rec[colAmount], err)
	}
	if amount.IsZero() {
		return Row{}, fmt.Errorf("amount must not be zero")
	}

	return Row{
		Date:        date,
		Description: rec[colDesc],
		Amount:      amount,
		Category:    rec[colCategory],
	}, nil
}
