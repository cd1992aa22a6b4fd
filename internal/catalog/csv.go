package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storepos/m/internal/activity"
	"storepos/m/internal/apperr"
	"storepos/m/internal/store"
)

var csvHeader = []string{"name", "price", "category"}

// ImportResult reports what an import did. Errors lists the rejected rows.
type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// Import reads name,price[,category] rows after a header line and inserts the
// valid ones in one transaction. A price that cannot be parsed becomes zero.
func (s *Service) Import(ctx context.Context, actorID int64, r io.Reader) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return ImportResult{Errors: []string{}}, nil
		}
		return ImportResult{}, apperr.Validation("unable to read csv header")
	}

	result := ImportResult{Errors: []string{}}
	var rows []ProductInput
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		name := ""
		if len(record) > 0 {
			name = strings.TrimSpace(record[0])
		}
		if name == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: missing product name", line))
			continue
		}
		in := ProductInput{Name: name, Price: decimal.Zero}
		if len(record) > 1 {
			in.Price = parsePrice(record[1])
		}
		if len(record) > 2 {
			in.Category = strings.TrimSpace(record[2])
		}
		rows = append(rows, in)
	}

	if len(rows) == 0 {
		return result, nil
	}

	err := s.store.Write(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `INSERT INTO products (name, price, category) VALUES (?, ?, ?)`)
		if err != nil {
			return apperr.Persistence("unable to prepare product import", err)
		}
		defer stmt.Close()

		for _, in := range rows {
			if _, err := stmt.ExecContext(ctx, in.Name, in.Price, in.Category); err != nil {
				return apperr.Persistence(fmt.Sprintf("unable to import product %s", in.Name), err)
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	result.Imported = len(rows)
	s.logger.Info().Int("imported", result.Imported).Int("rejected", len(result.Errors)).Msg("products imported")
	s.activity.Record(ctx, actorID, activity.ProductsImported, fmt.Sprintf("%d products imported", result.Imported))
	return result, nil
}

// Export writes the catalog in the layout Import reads.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	products, err := s.List(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return apperr.Persistence("unable to write csv", err)
	}
	for _, p := range products {
		if err := writer.Write([]string{p.Name, p.Price.StringFixed(2), p.Category}); err != nil {
			return apperr.Persistence("unable to write csv", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperr.Persistence("unable to write csv", err)
	}
	return nil
}

// LoadFile seeds the catalog from a CSV file when the products table is empty.
// Problems are logged, never returned, so a missing seed file does not stop
// the server.
func (s *Service) LoadFile(ctx context.Context, path string) {
	var count int
	err := s.store.Read(ctx, func(q store.Querier) error {
		return q.GetContext(ctx, &count, `SELECT COUNT(*) FROM products`)
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("unable to count products")
		return
	}
	if count > 0 {
		return
	}

	file, err := os.Open(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("unable to load product catalog")
		return
	}
	defer file.Close()

	result, err := s.Import(ctx, 0, file)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("unable to seed product catalog")
		return
	}
	for _, msg := range result.Errors {
		s.logger.Debug().Str("path", path).Msg(msg)
	}
	s.logger.Info().Str("path", path).Int("rows", result.Imported).Msg("seeded product catalog")
}

// parsePrice accepts "12.50" and "12,50". Anything else is zero.
func parsePrice(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}
