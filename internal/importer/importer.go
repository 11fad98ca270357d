package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/service/cart"
)

// ProductResolver looks a product up by slug.
type ProductResolver interface {
	Get(ctx context.Context, slug string) (*domain.Product, error)
}

// CartWriter is the part of the cart store the importer fills.
type CartWriter interface {
	AddItem(ctx context.Context, p domain.Product, opts ...cart.MutateOption) (domain.Cart, error)
	SetQuantity(ctx context.Context, productID string, quantity int, opts ...cart.MutateOption) (domain.Cart, error)
}

// Skipped is a row that was not added to the cart.
type Skipped struct {
	Line   int    `json:"line"`
	Slug   string `json:"slug"`
	Reason string `json:"reason"`
}

// Report summarizes an import.
type Report struct {
	Lines   int         `json:"lines"`
	Items   int         `json:"items"`
	Skipped []Skipped   `json:"skipped,omitempty"`
	Cart    domain.Cart `json:"cart"`
}

// CSVImporter reads a shopping list (slug, quantity) and adds every row to
// the active cart at the catalog's current price.
type CSVImporter struct {
	reader   *csv.Reader
	products ProductResolver
	cart     CartWriter
}

func NewCSVImporter(r io.Reader, products ProductResolver, w CartWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	csvr.Comment = '#'
	return &CSVImporter{
		reader:   csvr,
		products: products,
		cart:     w,
	}
}

type csvRow struct {
	Line     int
	Slug     string
	Quantity int
}

// Run adds each row to the cart. Rows with unknown products or unusable
// quantities are reported and skipped; storage and transport failures stop
// the import.
func (i *CSVImporter) Run(ctx context.Context) (Report, error) {
	var report Report

	headers, err := i.reader.Read()
	if err != nil {
		return report, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["slug"]; !ok {
		return report, fmt.Errorf("%w: missing slug column", domain.ErrValidation)
	}

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read row: %w", err)
		}
		line, _ := i.reader.FieldPos(0)

		row, reason := parseRow(record, index, line)
		if row == nil {
			continue
		}
		if reason != "" {
			report.Skipped = append(report.Skipped, Skipped{Line: line, Slug: row.Slug, Reason: reason})
			continue
		}

		updated, err := i.add(ctx, *row)
		if errors.Is(err, domain.ErrNotFound) {
			report.Skipped = append(report.Skipped, Skipped{Line: line, Slug: row.Slug, Reason: "unknown product"})
			continue
		}
		if err != nil {
			return report, fmt.Errorf("line %d (%s): %w", line, row.Slug, err)
		}
		report.Lines++
		report.Items += row.Quantity
		report.Cart = updated
	}

	return report, nil
}

func (i *CSVImporter) add(ctx context.Context, row csvRow) (domain.Cart, error) {
	p, err := i.products.Get(ctx, row.Slug)
	if err != nil {
		return domain.Cart{}, err
	}
	updated, err := i.cart.AddItem(ctx, *p)
	if err != nil {
		return domain.Cart{}, err
	}
	if row.Quantity == 1 {
		return updated, nil
	}
	line, _ := updated.Line(p.ID)
	return i.cart.SetQuantity(ctx, p.ID, line.Quantity+row.Quantity-1)
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// parseRow returns nil for blank rows and a reason for rows to skip.
func parseRow(record []string, index map[string]int, line int) (*csvRow, string) {
	slug := pick(record, index, "slug")
	qty := pick(record, index, "quantity")
	if slug == "" && qty == "" {
		return nil, ""
	}
	row := &csvRow{Line: line, Slug: slug, Quantity: 1}
	if slug == "" {
		return row, "missing slug"
	}
	if qty != "" {
		n, err := strconv.Atoi(qty)
		if err != nil {
			return row, fmt.Sprintf("invalid quantity %q", qty)
		}
		if n < 1 {
			return row, "quantity must be at least 1"
		}
		row.Quantity = n
	}
	return row, ""
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
