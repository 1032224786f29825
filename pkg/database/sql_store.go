package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"retail-analytics/pkg/models"
)

type dialect struct {
	name        string
	lineNoDDL   string // auto-increment primary key column
	priceType   string
	textType    string
	placeholder func(n int) string
	// notPrefix renders a case-sensitive "does not start with" test on invoice_no.
	notPrefix func(prefix string) (string, []any)
}

// substrNotPrefix compares the leading characters byte for byte under the
// default BINARY (SQLite) or deterministic (PostgreSQL) collation.
func substrNotPrefix(prefix string) (string, []any) {
	return "substr(invoice_no, 1, ?) <> ?", []any{int64(utf8.RuneCountInString(prefix)), prefix}
}

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		lineNoDDL:   "line_no INTEGER PRIMARY KEY AUTOINCREMENT",
		priceType:   "TEXT", // keeps decimal text exact
		textType:    "TEXT",
		placeholder: func(int) string { return "?" },
		notPrefix:   substrNotPrefix,
	}
	mysqlDialect = dialect{
		name:        "mysql",
		lineNoDDL:   "line_no BIGINT AUTO_INCREMENT PRIMARY KEY",
		priceType:   "DECIMAL(38,10)",
		textType:    "VARCHAR(255)",
		placeholder: func(int) string { return "?" },
		// default collations ignore case, compare the bytes instead
		notPrefix: func(prefix string) (string, []any) {
			return "CAST(substr(invoice_no, 1, ?) AS BINARY) <> CAST(? AS BINARY)", []any{int64(utf8.RuneCountInString(prefix)), prefix}
		},
	}
	postgresDialect = dialect{
		name:        "postgres",
		lineNoDDL:   "line_no BIGSERIAL PRIMARY KEY",
		priceType:   "NUMERIC", // unconstrained, no rounding
		textType:    "TEXT",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		notPrefix:   substrNotPrefix,
	}
)

// rebind rewrites "?" placeholders into the dialect's positional form.
func (d dialect) rebind(query string) string {
	if d.placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const lineColumns = "invoice_no, stock_code, description, quantity, unit_price, customer_id, invoice_date, country"

// SQLStore implements Store over database/sql for SQLite, MySQL/MariaDB and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	table   string
	dialect dialect
}

func newSQLStore(ctx context.Context, db *sql.DB, table string, d dialect) (*SQLStore, error) {
	table, err := validTable(table)
	if err != nil {
		return nil, err
	}
	s := &SQLStore{db: db, table: table, dialect: d}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", table, err)
	}
	return s, nil
}

// DB exposes the underlying pool.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) migrate(ctx context.Context) error {
	t := s.dialect.textType
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s,
			invoice_no %s NOT NULL,
			stock_code %s,
			description %s,
			quantity BIGINT,
			unit_price %s,
			customer_id %s,
			invoice_date %s,
			country %s
		)`, s.table, s.dialect.lineNoDDL, t, t, t, s.dialect.priceType, t, t, t)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Load inserts lines inside a single transaction; on error nothing is written.
func (s *SQLStore) Load(ctx context.Context, lines []models.TransactionLine) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := s.dialect.rebind(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table, lineColumns))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, l := range lines {
		if _, err := stmt.ExecContext(ctx,
			l.InvoiceNo, l.StockCode, l.Description, l.Quantity,
			l.UnitPrice, l.CustomerID, l.InvoiceDate, l.Country,
		); err != nil {
			return 0, fmt.Errorf("insert line %d (invoice %s): %w", i, l.InvoiceNo, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit load: %w", err)
	}
	return len(lines), nil
}

// Scan runs the filter's WHERE clause and applies the in-process predicate.
func (s *SQLStore) Scan(ctx context.Context, f Filter) ([]models.TransactionLine, error) {
	where, args := f.where(s.dialect)
	query := s.dialect.rebind(fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY line_no`, lineColumns, s.table, where))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []models.TransactionLine
	for rows.Next() {
		var (
			l         models.TransactionLine
			stockCode sql.NullString
			country   sql.NullString
		)
		if err := rows.Scan(&l.InvoiceNo, &stockCode, &l.Description, &l.Quantity,
			&l.UnitPrice, &l.CustomerID, &l.InvoiceDate, &country); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		l.StockCode = stockCode.String
		l.Country = country.String
		if f.Match(l) {
			out = append(out, l)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of stored lines.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return n, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
