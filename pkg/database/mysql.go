package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"customer-insights/pkg/models"
)

const mysqlDatetime = "2006-01-02 15:04:05"

var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Open accepts mariadb:// or mysql:// URLs as well as native driver DSNs,
// and returns the pool plus the normalized DSN actually used.
func Open(dsn string) (*sql.DB, string, error) {
	mysqlDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, mysqlDSN, nil
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("incomplete dsn (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}

// LoadOrdersMySQL reads the raw order table. Timestamps come back as
// DATETIME strings so the quality gate applies the same parsing rules to
// every source.
func LoadOrdersMySQL(ctx context.Context, db *sql.DB, table string) ([]models.RawOrder, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	q := fmt.Sprintf(`SELECT order_id, customer_id, order_purchase_timestamp, order_status FROM %s`, table)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []models.RawOrder
	for rows.Next() {
		var (
			orderID    sql.NullString
			customerID sql.NullString
			ts         sql.NullTime
			status     sql.NullString
		)
		if err := rows.Scan(&orderID, &customerID, &ts, &status); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		row := models.RawOrder{
			OrderID:    orderID.String,
			CustomerID: customerID.String,
			Status:     status.String,
		}
		if ts.Valid {
			row.Timestamp = ts.Time.UTC().Format(mysqlDatetime)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LoadPaymentsMySQL reads the raw payment table. Values stay strings until
// the gate parses them, so non-numeric rows are counted, not lost.
func LoadPaymentsMySQL(ctx context.Context, db *sql.DB, table string) ([]models.RawPayment, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	q := fmt.Sprintf(`SELECT order_id, payment_value FROM %s`, table)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []models.RawPayment
	for rows.Next() {
		var (
			orderID sql.NullString
			value   sql.NullString
		)
		if err := rows.Scan(&orderID, &value); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, models.RawPayment{OrderID: orderID.String, Value: value.String})
	}
	return out, rows.Err()
}
