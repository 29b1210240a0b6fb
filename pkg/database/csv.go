// Package database loads the raw order and payment tables from CSV files or
// a MySQL/MariaDB database. Loaders validate the column schema and hand raw
// rows to the quality gate; they never clean data themselves.
package database

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"customer-insights/pkg/analyticserr"
	"customer-insights/pkg/models"
)

// Required order columns, Olist naming.
const (
	colOrderID    = "order_id"
	colCustomerID = "customer_id"
	colTimestamp  = "order_purchase_timestamp"
	colStatus     = "order_status"
	colValue      = "payment_value"
)

// LoadOrdersCSV reads raw order rows. A missing required column is a schema
// error; the optional order_status column defaults to empty.
func LoadOrdersCSV(r io.Reader) ([]models.RawOrder, error) {
	records, idx, err := readTable(r, "orders", []string{colOrderID, colCustomerID, colTimestamp})
	if err != nil {
		return nil, err
	}

	statusIdx, hasStatus := idx[colStatus]
	out := make([]models.RawOrder, 0, len(records))
	for _, rec := range records {
		row := models.RawOrder{
			OrderID:    rec[idx[colOrderID]],
			CustomerID: rec[idx[colCustomerID]],
			Timestamp:  rec[idx[colTimestamp]],
		}
		if hasStatus {
			row.Status = rec[statusIdx]
		}
		out = append(out, row)
	}
	return out, nil
}

// LoadPaymentsCSV reads raw payment rows.
func LoadPaymentsCSV(r io.Reader) ([]models.RawPayment, error) {
	records, idx, err := readTable(r, "payments", []string{colOrderID, colValue})
	if err != nil {
		return nil, err
	}

	out := make([]models.RawPayment, 0, len(records))
	for _, rec := range records {
		out = append(out, models.RawPayment{
			OrderID: rec[idx[colOrderID]],
			Value:   rec[idx[colValue]],
		})
	}
	return out, nil
}

// LoadOrdersFile and LoadPaymentsFile are path-based conveniences for the
// launcher.
func LoadOrdersFile(path string) ([]models.RawOrder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	defer f.Close()
	return LoadOrdersCSV(f)
}

func LoadPaymentsFile(path string) ([]models.RawPayment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open payments: %w", err)
	}
	defer f.Close()
	return LoadPaymentsCSV(f)
}

// readTable parses a CSV stream and checks the header against the required
// columns before any row is read.
func readTable(r io.Reader, table string, required []string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s header: %w", table, err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, nil, &analyticserr.SchemaError{Table: table, Column: col}
		}
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s rows: %w", table, err)
	}
	return records, idx, nil
}
