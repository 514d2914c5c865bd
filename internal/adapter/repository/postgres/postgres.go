// Package postgres implements the URL repository on top of PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shorturls/internal/entity"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErrCode
}

type urlDB struct {
	ID          int64     `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	ClickCount  int64     `db:"click_count"`
	CreatedAt   time.Time `db:"created_at"`
	Expiry      time.Time `db:"expiry"`
}

func (u *urlDB) toEntity(clicks []clickDB) *entity.ShortURL {
	url := &entity.ShortURL{
		ID:             u.ID,
		ShortCode:      u.ShortCode,
		OriginalURL:    u.OriginalURL,
		CreatedAt:      u.CreatedAt.UTC(),
		Expiry:         u.Expiry.UTC(),
		ClickCount:     u.ClickCount,
		ClickAnalytics: make([]entity.Click, 0, len(clicks)),
	}

	for _, c := range clicks {
		url.ClickAnalytics = append(url.ClickAnalytics, c.toEntity())
	}

	return url
}

type clickDB struct {
	ClickedAt time.Time      `db:"clicked_at"`
	Referrer  sql.NullString `db:"referrer"`
	Location  sql.NullString `db:"location"`
}

func (c *clickDB) toEntity() entity.Click {
	return entity.Click{
		Timestamp: c.ClickedAt.UTC(),
		Referrer:  c.Referrer.String,
		Location:  c.Location.String,
	}
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Save inserts url. The unique constraint on short_code makes a concurrent insert of the
// same code fail with entity.ErrShortCodeExists.
func (r *URLRepository) Save(ctx context.Context, url *entity.ShortURL) (*entity.ShortURL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls(short_code, original_url, click_count, created_at, expiry)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`

	var row urlDB

	err := r.db.GetContext(ctx, &row, query,
		url.ShortCode, url.OriginalURL, url.ClickCount, url.CreatedAt, url.Expiry)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return row.toEntity(nil), nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.ShortURL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByShortCode"
	const urlQuery = `SELECT * FROM urls WHERE short_code = $1`
	const clicksQuery = `SELECT clicked_at, referrer, location FROM clicks
		WHERE url_id = $1
		ORDER BY clicked_at, id`

	var row urlDB

	if err := r.db.GetContext(ctx, &row, urlQuery, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	var clicks []clickDB

	if err := r.db.SelectContext(ctx, &clicks, clicksQuery, row.ID); err != nil {
		return nil, fmt.Errorf("%s: failed to get rows from clicks table: %w", op, err)
	}

	return row.toEntity(clicks), nil
}

// AddClick appends click to the URL and increments its counter in one statement.
func (r *URLRepository) AddClick(ctx context.Context, shortCode string, click entity.Click) error {
	const op = "adapter.repository.postgres.URLRepository.AddClick"
	const query = `WITH u AS (
			UPDATE urls SET click_count = click_count + 1 WHERE short_code = $1 RETURNING id
		)
		INSERT INTO clicks(url_id, clicked_at, referrer, location)
		SELECT id, $2::timestamptz, NULLIF($3::text, ''), NULLIF($4::text, '') FROM u`

	res, err := r.db.ExecContext(ctx, query, shortCode, click.Timestamp, click.Referrer, click.Location)
	if err != nil {
		return fmt.Errorf("%s: failed to insert into clicks table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return nil
}
