package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rl1809/auction/internal/core/domain"
)

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS auctions (
	id             VARCHAR(64)   NOT NULL PRIMARY KEY,
	item_name      VARCHAR(255)  NOT NULL,
	description    TEXT          NOT NULL,
	seller         VARCHAR(255)  NOT NULL,
	starting_bid   DECIMAL(18,2) NOT NULL,
	current_bid    DECIMAL(18,2) NOT NULL,
	highest_bidder VARCHAR(255)  NOT NULL DEFAULT '',
	closing_time   DATETIME(6)   NOT NULL,
	is_closed      BOOLEAN       NOT NULL DEFAULT FALSE,
	version        BIGINT        NOT NULL DEFAULT 0,
	created_at     DATETIME(6)   NOT NULL,
	updated_at     DATETIME(6)   NOT NULL,
	INDEX idx_auctions_closing (closing_time, id)
)`

const mysqlColumns = `id, item_name, description, seller, starting_bid, current_bid,
	highest_bidder, closing_time, is_closed, version, created_at, updated_at`

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) InitSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, mysqlSchema); err != nil {
		return fmt.Errorf("create auctions table: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Get(ctx context.Context, id string) (domain.AuctionItem, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+mysqlColumns+` FROM auctions WHERE id = ?`, id)

	item, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AuctionItem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AuctionItem{}, fmt.Errorf("query auction: %w", err)
	}
	return item, nil
}

func (m *MySQLAdapter) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, next domain.AuctionItem) (domain.AuctionItem, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE auctions
		SET current_bid = ?, highest_bidder = ?, is_closed = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		next.CurrentBid, next.HighestBidder, next.IsClosed, next.UpdatedAt.UTC(),
		id, expectedVersion,
	)
	if err != nil {
		return domain.AuctionItem{}, fmt.Errorf("update auction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.AuctionItem{}, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		err := m.db.QueryRowContext(ctx, `SELECT 1 FROM auctions WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AuctionItem{}, domain.ErrNotFound
		}
		if err != nil {
			return domain.AuctionItem{}, fmt.Errorf("probe auction: %w", err)
		}
		return domain.AuctionItem{}, domain.ErrVersionConflict
	}

	return m.Get(ctx, id)
}

func (m *MySQLAdapter) Create(ctx context.Context, item domain.AuctionItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO auctions (`+mysqlColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		item.ID, item.ItemName, item.Description, item.Seller,
		item.StartingBid, item.CurrentBid, item.HighestBidder,
		item.ClosingTime.UTC(), item.IsClosed,
		item.CreatedAt.UTC(), item.UpdatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert auction: %w", err)
	}

	return item.ID, nil
}

func (m *MySQLAdapter) List(ctx context.Context, filter domain.ListFilter) ([]domain.AuctionItem, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ActiveOnly {
		where = append(where, "is_closed = FALSE AND closing_time > ?")
		args = append(args, filter.Now.UTC())
	}
	if filter.ExpiredOnly {
		where = append(where, "is_closed = FALSE AND closing_time <= ?")
		args = append(args, filter.Now.UTC())
	}
	if filter.Seller != "" {
		where = append(where, "seller = ?")
		args = append(args, filter.Seller)
	}

	query := `SELECT ` + mysqlColumns + ` FROM auctions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY closing_time, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query auctions: %w", err)
	}
	defer rows.Close()

	items := []domain.AuctionItem{}
	for rows.Next() {
		item, err := scanAuction(rows)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (domain.AuctionItem, error) {
	var item domain.AuctionItem
	err := row.Scan(
		&item.ID, &item.ItemName, &item.Description, &item.Seller,
		&item.StartingBid, &item.CurrentBid, &item.HighestBidder,
		&item.ClosingTime, &item.IsClosed, &item.Version,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return domain.AuctionItem{}, err
	}

	item.ClosingTime = item.ClosingTime.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}
