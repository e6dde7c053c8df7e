package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rl1809/auction/internal/core/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS auctions (
	id             TEXT          PRIMARY KEY,
	item_name      TEXT          NOT NULL,
	description    TEXT          NOT NULL,
	seller         TEXT          NOT NULL,
	starting_bid   NUMERIC(18,2) NOT NULL,
	current_bid    NUMERIC(18,2) NOT NULL,
	highest_bidder TEXT          NOT NULL DEFAULT '',
	closing_time   TIMESTAMPTZ   NOT NULL,
	is_closed      BOOLEAN       NOT NULL DEFAULT FALSE,
	version        BIGINT        NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ   NOT NULL,
	updated_at     TIMESTAMPTZ   NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_auctions_closing ON auctions (closing_time, id);`

const postgresColumns = `id, item_name, description, seller, starting_bid::text, current_bid::text,
	highest_bidder, closing_time, is_closed, version, created_at, updated_at`

type PostgresAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

func (p *PostgresAdapter) InitSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create auctions table: %w", err)
	}
	return nil
}

func (p *PostgresAdapter) Get(ctx context.Context, id string) (domain.AuctionItem, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+postgresColumns+` FROM auctions WHERE id = $1`, id)

	item, err := scanPostgresAuction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuctionItem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AuctionItem{}, fmt.Errorf("query auction: %w", err)
	}
	return item, nil
}

func (p *PostgresAdapter) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, next domain.AuctionItem) (domain.AuctionItem, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE auctions
		SET current_bid = $1::numeric, highest_bidder = $2, is_closed = $3, updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING `+postgresColumns,
		next.CurrentBid.String(), next.HighestBidder, next.IsClosed, next.UpdatedAt.UTC(),
		id, expectedVersion,
	)

	item, err := scanPostgresAuction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return domain.AuctionItem{}, fmt.Errorf("probe auction: %w", err)
		}
		if !exists {
			return domain.AuctionItem{}, domain.ErrNotFound
		}
		return domain.AuctionItem{}, domain.ErrVersionConflict
	}
	if err != nil {
		return domain.AuctionItem{}, fmt.Errorf("update auction: %w", err)
	}

	return item, nil
}

func (p *PostgresAdapter) Create(ctx context.Context, item domain.AuctionItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO auctions (id, item_name, description, seller, starting_bid, current_bid,
			highest_bidder, closing_time, is_closed, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, 0, $10, $11)`,
		item.ID, item.ItemName, item.Description, item.Seller,
		item.StartingBid.String(), item.CurrentBid.String(), item.HighestBidder,
		item.ClosingTime.UTC(), item.IsClosed,
		item.CreatedAt.UTC(), item.UpdatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert auction: %w", err)
	}

	return item.ID, nil
}

func (p *PostgresAdapter) List(ctx context.Context, filter domain.ListFilter) ([]domain.AuctionItem, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ActiveOnly {
		where = append(where, "is_closed = FALSE AND closing_time > "+arg(filter.Now.UTC()))
	}
	if filter.ExpiredOnly {
		where = append(where, "is_closed = FALSE AND closing_time <= "+arg(filter.Now.UTC()))
	}
	if filter.Seller != "" {
		where = append(where, "seller = "+arg(filter.Seller))
	}

	query := `SELECT ` + postgresColumns + ` FROM auctions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY closing_time, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query auctions: %w", err)
	}
	defer rows.Close()

	items := []domain.AuctionItem{}
	for rows.Next() {
		item, err := scanPostgresAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auctions: %w", err)
	}

	return items, nil
}

func scanPostgresAuction(row pgx.Row) (domain.AuctionItem, error) {
	var (
		item                    domain.AuctionItem
		startingBid, currentBid string
	)
	err := row.Scan(
		&item.ID, &item.ItemName, &item.Description, &item.Seller,
		&startingBid, &currentBid, &item.HighestBidder,
		&item.ClosingTime, &item.IsClosed, &item.Version,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return domain.AuctionItem{}, err
	}

	if item.StartingBid, err = decimal.NewFromString(startingBid); err != nil {
		return domain.AuctionItem{}, fmt.Errorf("decode starting_bid: %w", err)
	}
	if item.CurrentBid, err = decimal.NewFromString(currentBid); err != nil {
		return domain.AuctionItem{}, fmt.Errorf("decode current_bid: %w", err)
	}

	item.ClosingTime = item.ClosingTime.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}
