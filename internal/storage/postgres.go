package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propdesk/propdesk/internal/models"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	poolConfig.MaxConns = 25
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}

	poolConfig.MinConns = 2
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}

	poolConfig.MaxConnLifetime = 30 * time.Minute
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the underlying pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// ListListedFirms returns firms shown on the site
func (r *PostgresRepository) ListListedFirms(ctx context.Context) ([]*models.Firm, error) {
	query := `
		SELECT id, name, logo_url, brand_color, rating, review_count, status
		FROM prop_firms
		WHERE status = $1
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query, models.FirmStatusListed)
	if err != nil {
		return nil, fmt.Errorf("failed to list firms: %w", err)
	}
	defer rows.Close()

	var firms []*models.Firm
	for rows.Next() {
		var f models.Firm
		var logoURL, brandColor sql.NullString

		if err := rows.Scan(&f.ID, &f.Name, &logoURL, &brandColor, &f.Rating, &f.ReviewCount, &f.Status); err != nil {
			return nil, fmt.Errorf("failed to scan firm: %w", err)
		}
		f.LogoURL = logoURL.String
		f.BrandColor = brandColor.String

		firms = append(firms, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating firms: %w", err)
	}

	return firms, nil
}

// ListChallenges returns every challenge row
func (r *PostgresRepository) ListChallenges(ctx context.Context) ([]*models.Challenge, error) {
	query := `
		SELECT id, prop_firm_id, account_size, account_type, price, discounted_price,
		       profit_target_phase1, profit_target_phase2, profit_target_phase3,
		       max_daily_loss, max_drawdown, profit_split, payout_frequency
		FROM propfirm_challenges
		ORDER BY prop_firm_id, price
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*models.Challenge
	for rows.Next() {
		var c models.Challenge
		err := rows.Scan(
			&c.ID,
			&c.PropFirmID,
			&c.AccountSize,
			&c.AccountType,
			&c.Price,
			&c.DiscountedPrice,
			&c.ProfitTargetPhase1,
			&c.ProfitTargetPhase2,
			&c.ProfitTargetPhase3,
			&c.MaxDailyLoss,
			&c.MaxDrawdown,
			&c.ProfitSplit,
			&c.PayoutFrequency,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}

	return challenges, nil
}

// AllocateReviewNumber atomically hands out the next review number of a company.
// floor seeds a company's counter on first use and never lets it fall below an observed folder number.
func (r *PostgresRepository) AllocateReviewNumber(ctx context.Context, companyID string, floor int) (int, error) {
	if floor < 1 {
		floor = 1
	}

	query := `
		INSERT INTO review_counters (company_id, last_number)
		VALUES ($1, GREATEST($2::int, COALESCE((SELECT MAX(review_number) + 1 FROM reviews WHERE company_id = $1), 1)))
		ON CONFLICT (company_id) DO UPDATE
		SET last_number = GREATEST(review_counters.last_number + 1, EXCLUDED.last_number)
		RETURNING last_number
	`

	var number int
	if err := r.pool.QueryRow(ctx, query, companyID, floor).Scan(&number); err != nil {
		return 0, fmt.Errorf("failed to allocate review number: %w", err)
	}

	return number, nil
}

// CreateReview inserts a review row
func (r *PostgresRepository) CreateReview(ctx context.Context, rv *models.Review) error {
	ratingsJSON, err := json.Marshal(rv.Ratings)
	if err != nil {
		return fmt.Errorf("failed to marshal ratings: %w", err)
	}

	reportPaths := rv.ReportProofPaths
	if reportPaths == nil {
		reportPaths = []string{}
	}

	query := `
		INSERT INTO reviews (
			id, company_id, user_id, account_size, account_type, trading_duration,
			funded_status, payout_status, review_text, pros, cons, report_issue,
			report_description, ratings, review_number, status, proof_path,
			funded_proof_path, payout_proof_path, report_proof_paths, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err = r.pool.Exec(ctx, query,
		rv.ID,
		rv.CompanyID,
		nullString(rv.UserID),
		nullString(rv.AccountSize),
		nullString(rv.AccountType),
		nullString(rv.TradingDuration),
		nullString(rv.FundedStatus),
		nullString(rv.PayoutStatus),
		nullString(rv.ReviewText),
		nullString(rv.Pros),
		nullString(rv.Cons),
		rv.ReportIssue,
		nullString(rv.ReportDescription),
		ratingsJSON,
		rv.ReviewNumber,
		string(rv.Status),
		rv.ProofPath,
		rv.FundedProofPath,
		rv.PayoutProofPath,
		reportPaths,
		rv.CreatedAt,
		rv.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: company %s number %d", ErrReviewNumberTaken, rv.CompanyID, rv.ReviewNumber)
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

const reviewColumns = `
	id, company_id, user_id, account_size, account_type, trading_duration,
	funded_status, payout_status, review_text, pros, cons, report_issue,
	report_description, ratings, review_number, status, proof_path,
	funded_proof_path, payout_proof_path, report_proof_paths, created_at, updated_at
`

// GetReview retrieves a review by ID; a missing review yields (nil, nil)
func (r *PostgresRepository) GetReview(ctx context.Context, id string) (*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	rv, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return rv, nil
}

// ListReviews returns reviews matching filters, newest first
func (r *PostgresRepository) ListReviews(ctx context.Context, filters models.ReviewFilters) ([]*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.CompanyID != "" {
		query += fmt.Sprintf(" AND company_id = $%d", argNum)
		args = append(args, filters.CompanyID)
		argNum++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

// UpdateReviewStatus moves a review from one status to another.
// It reports false when the review is not currently in status from.
func (r *PostgresRepository) UpdateReviewStatus(ctx context.Context, id string, from, to models.ReviewStatus) (bool, error) {
	query := `
		UPDATE reviews
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.pool.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to update review status: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

func scanReview(row pgx.Row) (*models.Review, error) {
	var rv models.Review
	var status string
	var userID, accountSize, accountType, tradingDuration sql.NullString
	var fundedStatus, payoutStatus, reviewText, pros, cons, reportDescription sql.NullString
	var ratingsJSON []byte

	err := row.Scan(
		&rv.ID,
		&rv.CompanyID,
		&userID,
		&accountSize,
		&accountType,
		&tradingDuration,
		&fundedStatus,
		&payoutStatus,
		&reviewText,
		&pros,
		&cons,
		&rv.ReportIssue,
		&reportDescription,
		&ratingsJSON,
		&rv.ReviewNumber,
		&status,
		&rv.ProofPath,
		&rv.FundedProofPath,
		&rv.PayoutProofPath,
		&rv.ReportProofPaths,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rv.Status = models.ReviewStatus(status)
	rv.UserID = userID.String
	rv.AccountSize = accountSize.String
	rv.AccountType = accountType.String
	rv.TradingDuration = tradingDuration.String
	rv.FundedStatus = fundedStatus.String
	rv.PayoutStatus = payoutStatus.String
	rv.ReviewText = reviewText.String
	rv.Pros = pros.String
	rv.Cons = cons.String
	rv.ReportDescription = reportDescription.String

	if len(ratingsJSON) > 0 {
		if err := json.Unmarshal(ratingsJSON, &rv.Ratings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ratings: %w", err)
		}
	}

	return &rv, nil
}

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed stamps the client's last_used_at
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	if _, err := r.pool.Exec(ctx, query, apiKey); err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
