package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/savdobot/internal/catalog"
)

const productColumns = "id, name, price, max_quantity, post_id"

// CatalogStore keeps products in the products table.
type CatalogStore struct {
	db *sqlx.DB
}

// NewCatalogStore wraps db.
func NewCatalogStore(db *sqlx.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

var _ catalog.Store = (*CatalogStore)(nil)

func (s *CatalogStore) Get(ctx context.Context, id string) (catalog.Product, error) {
	var p catalog.Product
	err := s.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func (s *CatalogStore) List(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	if err := s.db.SelectContext(ctx, &out, `SELECT `+productColumns+` FROM products ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *CatalogStore) Add(ctx context.Context, p catalog.Product) error {
	if err := catalog.ValidateID(p.ID); err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :name, :price, :max_quantity, :post_id)
		ON CONFLICT (id) DO NOTHING`, p)
	if err != nil {
		return fmt.Errorf("insert product %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert product %s: %w", p.ID, err)
	}
	if n == 0 {
		return catalog.ErrExists
	}
	return nil
}

func (s *CatalogStore) Update(ctx context.Context, id string, fn func(*catalog.Product) error) (catalog.Product, error) {
	var p catalog.Product
	err := inTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock product %s: %w", id, err)
		}
		if err := fn(&p); err != nil {
			return err
		}
		p.ID = id
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET name = $2, price = $3, max_quantity = $4, post_id = $5 WHERE id = $1`,
			p.ID, p.Name, p.Price, p.MaxQuantity, p.PostID,
		); err != nil {
			return fmt.Errorf("update product %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

func (s *CatalogStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
