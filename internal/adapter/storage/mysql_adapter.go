package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
)

const mysqlDuplicateEntry = 1062

const itemColumns = `id, name, price_cents, quantity, version, created_at, updated_at`

type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Get(ctx context.Context, id int64) (*domain.Item, error) {
	var item domain.Item
	err := m.db.GetContext(ctx, &item, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("query item", err)
	}
	return &item, nil
}

func (m *MySQLAdapter) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := m.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)`, id); err != nil {
		return false, unavailable("query item existence", err)
	}
	return exists, nil
}

func (m *MySQLAdapter) List(ctx context.Context) ([]domain.Item, error) {
	items := []domain.Item{}
	if err := m.db.SelectContext(ctx, &items, `SELECT `+itemColumns+` FROM items ORDER BY id`); err != nil {
		return nil, unavailable("list items", err)
	}
	return items, nil
}

func (m *MySQLAdapter) Create(ctx context.Context, item domain.Item) (*domain.Item, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO items (name, price_cents, quantity, version, created_at, updated_at)
		VALUES (?, ?, ?, 0, NOW(6), NOW(6))`,
		item.Name, item.PriceCents, item.Quantity,
	)
	if isDuplicate(err) {
		return nil, domain.ErrDuplicateName
	}
	if err != nil {
		return nil, unavailable("insert item", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, unavailable("insert item id", err)
	}
	return m.Get(ctx, id)
}

func (m *MySQLAdapter) Replace(ctx context.Context, id int64, item domain.Item) (*domain.Item, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE items
		SET name = ?, price_cents = ?, quantity = ?, version = version + 1, updated_at = NOW(6)
		WHERE id = ?`,
		item.Name, item.PriceCents, item.Quantity, id,
	)
	if isDuplicate(err) {
		return nil, domain.ErrDuplicateName
	}
	if err != nil {
		return nil, unavailable("update item", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, unavailable("update item", err)
	}
	if rows == 0 {
		return nil, domain.ErrNotFound
	}
	return m.Get(ctx, id)
}

func (m *MySQLAdapter) Delete(ctx context.Context, id int64) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete item", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return unavailable("delete item", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) CompareAndSetQuantity(ctx context.Context, id int64, expected, newQuantity int) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE items
		SET quantity = ?, version = version + 1, updated_at = NOW(6)
		WHERE id = ? AND quantity = ?`,
		newQuantity, id, expected,
	)
	if err != nil {
		return false, unavailable("compare and set quantity", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, unavailable("compare and set quantity", err)
	}
	return rows == 1, nil
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
