package store

import (
	"context"
	"fmt"
	"sort"
)

const vectorColumn = "embedding"

// VectorTable stores fixed-dimension vectors addressed by their implicit
// rowid and answers nearest-neighbour queries by squared Euclidean distance.
type VectorTable struct {
	name       string
	dimensions int
	conn       querier
}

func NewVectorTable(conn querier, name string, dimensions int) *VectorTable {
	return &VectorTable{name: name, dimensions: dimensions, conn: conn}
}

func (t *VectorTable) bind(q querier) *VectorTable {
	c := *t
	c.conn = q
	return &c
}

func (t *VectorTable) Name() string { return t.name }
func (t *VectorTable) Kind() TableKind { return KindVector }
func (t *VectorTable) Dimensions() int { return t.dimensions }

func (t *VectorTable) CreateIfAbsent(ctx context.Context) error {
	col, _ := quoteIdent(vectorColumn)
	def := fmt.Sprintf("%s BLOB NOT NULL CHECK (length(%s) = %d)", col, col, t.dimensions*4)
	stmt, err := createStatement(t.name, []string{def})
	if err != nil {
		return err
	}
	if _, err := t.conn.ExecContext(ctx, stmt); err != nil {
		return wrapErr("create table "+t.name, err)
	}
	return nil
}

// Insert accepts a single []float32 or pre-encoded []byte value.
func (t *VectorTable) Insert(ctx context.Context, values []any, columns ...string) (int64, error) {
	if len(values) != 1 {
		return 0, fmt.Errorf("insert into %s takes exactly one vector, got %d values", t.name, len(values))
	}
	if len(columns) > 1 || (len(columns) == 1 && columns[0] != vectorColumn) {
		return 0, fmt.Errorf("%w: %s only has the %q column", ErrInvalidIdentifier, t.name, vectorColumn)
	}
	switch v := values[0].(type) {
	case []float32:
		return t.InsertVector(ctx, v)
	case []byte:
		if len(v) != t.dimensions*4 {
			return 0, fmt.Errorf("%w: blob of %d bytes, expected %d", ErrDimensionMismatch, len(v), t.dimensions*4)
		}
		return t.insertBlob(ctx, v)
	default:
		return 0, fmt.Errorf("insert into %s: unsupported vector type %T", t.name, values[0])
	}
}

func (t *VectorTable) InsertVector(ctx context.Context, vec []float32) (int64, error) {
	if len(vec) != t.dimensions {
		return 0, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), t.dimensions)
	}
	return t.insertBlob(ctx, EncodeVector(vec))
}

func (t *VectorTable) insertBlob(ctx context.Context, blob []byte) (int64, error) {
	stmt, err := insertStatement(t.name, []string{vectorColumn}, 1)
	if err != nil {
		return 0, err
	}
	return execInsert(ctx, t.conn, t.name, stmt, blob)
}

func (t *VectorTable) Select(ctx context.Context, fields []string, predicate string, args ...any) ([]Row, error) {
	stmt, err := selectStatement(t.name, fields, predicate)
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, t.conn, t.name, stmt, args...)
}

func (t *VectorTable) DeleteTable(ctx context.Context) error {
	return dropTable(ctx, t.conn, t.name)
}

// SearchSimilar runs one k-nearest query per query vector, merges the
// results, orders them by ascending distance with ties going to the earlier
// rowid, and keeps at most k*len(queries) hits.
func (t *VectorTable) SearchSimilar(ctx context.Context, queries [][]float32, k int) ([]Hit, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrSearchFailure, k)
	}

	tbl, err := quoteIdent(t.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailure, err)
	}
	col, _ := quoteIdent(vectorColumn)
	stmt := fmt.Sprintf(
		"SELECT rowid, %s(%s, ?) AS distance FROM %s ORDER BY distance ASC, rowid ASC LIMIT ?",
		distanceFunction, col, tbl,
	)

	var hits []Hit
	for i, q := range queries {
		if len(q) != t.dimensions {
			return nil, fmt.Errorf("%w: query %d: %w: got %d, expected %d", ErrSearchFailure, i, ErrDimensionMismatch, len(q), t.dimensions)
		}
		found, err := t.nearest(ctx, stmt, EncodeVector(q), k)
		if err != nil {
			if unavailable(err) {
				return nil, fmt.Errorf("%w: query %d: %w", ErrStorageUnavailable, i, err)
			}
			return nil, fmt.Errorf("%w: query %d: %w", ErrSearchFailure, i, err)
		}
		hits = append(hits, found...)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].RowID < hits[j].RowID
	})
	if limit := k * len(queries); len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (t *VectorTable) nearest(ctx context.Context, stmt string, query []byte, k int) ([]Hit, error) {
	rows, err := t.conn.QueryContext(ctx, stmt, query, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.RowID, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
