package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

var (
	ErrUnknownStat  = errors.New("unknown stat")
	ErrInvalidParam = errors.New("invalid stat parameter")
)

// Kind names a company statistic
type Kind string

const (
	HighEarners          Kind = "high-earners"
	MonthlyUniqueTraders Kind = "monthly-unique-traders"
	TopPayouts           Kind = "top-payouts"
)

// function describes a database RPC function and its second argument
type function struct {
	name     string
	param    string
	fallback float64
	integer  bool
}

var functions = map[Kind]function{
	HighEarners:          {name: "get_company_high_earners", param: "threshold", fallback: 10000},
	MonthlyUniqueTraders: {name: "get_company_monthly_unique_traders", param: "months", fallback: 12, integer: true},
	TopPayouts:           {name: "get_company_top_payouts", param: "limit", fallback: 10, integer: true},
}

// Kinds returns every supported stat
func Kinds() []Kind {
	return []Kind{HighEarners, MonthlyUniqueTraders, TopPayouts}
}

// ParamName returns the query parameter accepted by the stat
func ParamName(kind Kind) (string, bool) {
	fn, ok := functions[kind]
	return fn.param, ok
}

// ParseParam parses the query value of the stat's parameter.
// months and limit must be whole numbers; every parameter must be non-negative.
func ParseParam(kind Kind, raw string) (float64, error) {
	fn, ok := functions[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownStat, kind)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidParam, fn.param)
	}
	if err := fn.check(v); err != nil {
		return 0, err
	}
	return v, nil
}

func (fn function) check(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidParam, fn.param)
	}
	if fn.integer && v != math.Trunc(v) {
		return fmt.Errorf("%w: %s must be a whole number", ErrInvalidParam, fn.param)
	}
	return nil
}

// Row is one result row keyed by column name
type Row map[string]any

// Service calls the statistics functions hosted in the database
type Service struct {
	db *sql.DB
}

// NewService wraps an open database
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Open connects to the statistics database with lib/pq
func Open(dsn string, maxOpenConns int) (*Service, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping stats database: %w", err)
	}

	return &Service{db: db}, nil
}

// Get runs the function behind kind for a company.
// A nil param uses the function's default argument.
func (s *Service) Get(ctx context.Context, kind Kind, companyID string, param *float64) ([]Row, error) {
	fn, ok := functions[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStat, kind)
	}

	value := fn.fallback
	if param != nil {
		if err := fn.check(*param); err != nil {
			return nil, err
		}
		value = *param
	}

	var arg any = value
	if fn.integer {
		arg = int64(value)
	}

	// fn.name comes from the fixed table above
	query := fmt.Sprintf("SELECT * FROM %s($1, $2)", fn.name)

	rows, err := s.db.QueryContext(ctx, query, companyID, arg)
	if err != nil {
		slog.Error("stats function failed", "function", fn.name, "company_id", companyID, "error", err)
		return nil, fmt.Errorf("failed to call %s: %w", fn.name, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fn.name, err)
	}
	return result, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// Ping checks the database connection
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Service) Close() error {
	return s.db.Close()
}
