// Package catalog manages the products offered at the point of sale.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storepos/m/domain"
	"storepos/m/internal/activity"
	"storepos/m/internal/apperr"
	"storepos/m/internal/store"
)

const (
	MsgNameRequired = "product name is required"
	MsgInvalidPrice = "invalid product price"
	MsgNotFound     = "product not found"
)

// Service is the product repository.
type Service struct {
	store    *store.Store
	activity activity.Recorder
	logger   zerolog.Logger
}

func NewService(s *store.Store, rec activity.Recorder, logger zerolog.Logger) *Service {
	return &Service{store: s, activity: rec, logger: logger}
}

// ProductInput carries the editable product fields.
type ProductInput struct {
	Name     string
	Price    decimal.Decimal
	Category string
}

func (in ProductInput) normalize() (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Name == "" {
		return in, apperr.Validation(MsgNameRequired)
	}
	if in.Price.IsNegative() {
		return in, apperr.Validation(MsgInvalidPrice)
	}
	in.Price = in.Price.Round(2)
	return in, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	err := s.store.Read(ctx, func(q store.Querier) error {
		return q.SelectContext(ctx, &products, `SELECT id, name, price, category FROM products ORDER BY name, id`)
	})
	if err != nil {
		return nil, apperr.Persistence("unable to load products", err)
	}
	return products, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := s.store.Read(ctx, func(q store.Querier) error {
		return store.NotFound(q.GetContext(ctx, &p, `SELECT id, name, price, category FROM products WHERE id = ?`, id), MsgNotFound)
	})
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, actorID int64, in ProductInput) (domain.Product, error) {
	in, err := in.normalize()
	if err != nil {
		return domain.Product{}, err
	}

	var id int64
	err = s.store.Write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO products (name, price, category) VALUES (?, ?, ?)`, in.Name, in.Price, in.Category)
		if err != nil {
			return apperr.Persistence("unable to create product", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.activity.Record(ctx, actorID, activity.ProductCreated, fmt.Sprintf("%s (%s)", in.Name, in.Price.StringFixed(2)))
	return domain.Product{ID: id, Name: in.Name, Price: in.Price, Category: in.Category}, nil
}

func (s *Service) Update(ctx context.Context, actorID, id int64, in ProductInput) (domain.Product, error) {
	in, err := in.normalize()
	if err != nil {
		return domain.Product{}, err
	}

	err = s.store.Write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE products SET name = ?, price = ?, category = ? WHERE id = ?`, in.Name, in.Price, in.Category, id)
		if err != nil {
			return apperr.Persistence("unable to update product", err)
		}
		return store.RequireAffected(res, MsgNotFound)
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.activity.Record(ctx, actorID, activity.ProductUpdated, fmt.Sprintf("%d: %s (%s)", id, in.Name, in.Price.StringFixed(2)))
	return domain.Product{ID: id, Name: in.Name, Price: in.Price, Category: in.Category}, nil
}

// Delete removes a product. Sales that reference it keep their rows and show
// an empty product name.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	err := s.store.Write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
		if err != nil {
			return apperr.Persistence("unable to delete product", err)
		}
		return store.RequireAffected(res, MsgNotFound)
	})
	if err != nil {
		return err
	}
	s.activity.Record(ctx, actorID, activity.ProductDeleted, fmt.Sprintf("product %d", id))
	return nil
}
