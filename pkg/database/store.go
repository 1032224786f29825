package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"retail-analytics/pkg/models"
)

// DefaultTable is the table holding the cleaned transaction lines.
const DefaultTable = "online_retail"

var tableNameRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Store holds the cleaned transaction lines. Once loading is finished it is read-only.
type Store interface {
	// Load appends lines and returns how many were written.
	Load(ctx context.Context, lines []models.TransactionLine) (int, error)
	// Scan returns every line matching the filter.
	Scan(ctx context.Context, f Filter) ([]models.TransactionLine, error)
	// Count returns the total number of stored lines.
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Filter selects lines. The flags are pushed down to the backend; Predicate
// runs in process on what the backend returns.
type Filter struct {
	Priced           bool // unit_price IS NOT NULL
	ExcludeCancelled bool // invoice does not carry CancelPrefix
	SalesOnly        bool // quantity > 0
	ReturnsOnly      bool // quantity < 0
	WithCustomer     bool // customer_id present
	CancelPrefix     string
	Predicate        func(models.TransactionLine) bool
}

// Match evaluates the whole filter against one line.
func (f Filter) Match(l models.TransactionLine) bool {
	switch {
	case f.Priced && !l.HasPrice():
		return false
	case f.ExcludeCancelled && l.IsCancelled(f.CancelPrefix):
		return false
	case f.SalesOnly && !l.IsSale():
		return false
	case f.ReturnsOnly && !l.IsReturn():
		return false
	case f.WithCustomer && !l.HasCustomer():
		return false
	case f.Predicate != nil && !f.Predicate(l):
		return false
	}
	return true
}

func (f Filter) prefix() string {
	if f.CancelPrefix == "" {
		return models.DefaultCancelPrefix
	}
	return f.CancelPrefix
}

// where renders the push-down flags as a WHERE clause with "?" placeholders.
func (f Filter) where(d dialect) (string, []any) {
	var conds []string
	var args []any
	if f.Priced {
		conds = append(conds, "unit_price IS NOT NULL")
	}
	if f.ExcludeCancelled {
		cond, condArgs := d.notPrefix(f.prefix())
		conds = append(conds, cond)
		args = append(args, condArgs...)
	}
	if f.SalesOnly {
		conds = append(conds, "quantity > 0")
	}
	if f.ReturnsOnly {
		conds = append(conds, "quantity < 0")
	}
	if f.WithCustomer {
		conds = append(conds, "customer_id IS NOT NULL AND customer_id <> ''")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func validTable(name string) (string, error) {
	if name == "" {
		return DefaultTable, nil
	}
	if !tableNameRE.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

// Open picks a backend from the DSN scheme:
// sqlite://path, mysql://, mariadb://, postgres://, clickhouse://, memory://.
// A bare path is treated as a SQLite file.
func Open(ctx context.Context, dsn, table string) (Store, error) {
	table, err := validTable(table)
	if err != nil {
		return nil, err
	}
	var (
		sqlStore *SQLStore
		chStore  *ClickHouseStore
	)
	switch {
	case strings.HasPrefix(dsn, "memory://"):
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "clickhouse://"):
		chStore, err = OpenClickHouse(ctx, dsn, table)
		if err != nil {
			return nil, err
		}
		return chStore, nil
	case strings.HasPrefix(dsn, "mysql://"), strings.HasPrefix(dsn, "mariadb://"):
		sqlStore, err = OpenMySQL(ctx, dsn, table)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		sqlStore, err = OpenPostgres(ctx, dsn, table)
	case strings.HasPrefix(dsn, "sqlite://"):
		sqlStore, err = OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"), table)
	case strings.Contains(dsn, "://"):
		return nil, fmt.Errorf("unsupported store dsn scheme: %s", dsn[:strings.Index(dsn, "://")])
	default:
		sqlStore, err = OpenSQLite(ctx, dsn, table)
	}
	if err != nil {
		return nil, err
	}
	return sqlStore, nil
}
