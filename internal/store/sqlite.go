package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"
)

const (
	TurnsTable      = "turns"
	EmbeddingsTable = "embeddings"
	LinksTable      = "embedding_links"

	previewLength = 50
)

// SQLiteStore owns a single SQLite connection and the three tables that make
// up conversation memory. Callers must not use one store from several
// goroutines at once; database/sql queues them on the one connection.
type SQLiteStore struct {
	db         *sql.DB
	turns      *RelationalTable
	embeddings *VectorTable
	links      *RelationalTable
}

func NewSQLiteStore(dataSourceName string, dimensions int) (*SQLiteStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", dimensions)
	}
	registerDriver()

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases alive and gives one writer.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrStorageUnavailable, err)
	}

	store := &SQLiteStore{
		db: db,
		turns: NewRelationalTable(db, TurnsTable,
			`"id" INTEGER PRIMARY KEY AUTOINCREMENT`,
			`"role" TEXT NOT NULL CHECK ("role" IN ('user', 'assistant'))`,
			`"content" TEXT NOT NULL`,
			`"timestamp" DATETIME DEFAULT CURRENT_TIMESTAMP`,
		),
		embeddings: NewVectorTable(db, EmbeddingsTable, dimensions),
		links: NewRelationalTable(db, LinksTable,
			`"embedding_row_id" INTEGER NOT NULL`,
			`"turn_id" INTEGER NOT NULL REFERENCES "turns" ("id")`,
		),
	}
	if err = store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	for _, t := range s.Tables() {
		if err := t.CreateIfAbsent(ctx); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS "idx_embedding_links_row" ON "embedding_links" ("embedding_row_id")`)
	if err != nil {
		return wrapErr("create link index", err)
	}
	return nil
}

func (s *SQLiteStore) Dimensions() int          { return s.embeddings.Dimensions() }
func (s *SQLiteStore) Turns() *RelationalTable  { return s.turns }
func (s *SQLiteStore) Embeddings() *VectorTable { return s.embeddings }
func (s *SQLiteStore) Links() *RelationalTable  { return s.links }

// Tables lists every table in creation order.
func (s *SQLiteStore) Tables() []Table {
	return []Table{s.turns, s.embeddings, s.links}
}

// Table looks up a table by name.
func (s *SQLiteStore) Table(name string) (Table, bool) {
	for _, t := range s.Tables() {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Turn methods

func (s *SQLiteStore) InsertTurn(ctx context.Context, role, content string) (int64, error) {
	return s.turns.Insert(ctx, []any{role, content}, "role", "content")
}

// SelectTurns returns the turns matching predicate in id order. An empty
// predicate selects every turn.
func (s *SQLiteStore) SelectTurns(ctx context.Context, predicate string, args ...any) ([]Turn, error) {
	if strings.TrimSpace(predicate) == "" {
		predicate = "1 = 1"
	}
	predicate += ` ORDER BY "id"`
	rows, err := s.turns.Select(ctx, []string{"id", "role", "content", "timestamp"}, predicate, args...)
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(rows))
	for _, row := range rows {
		id, err := asInt64(row[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read turn id: %w", err)
		}
		turns = append(turns, Turn{
			ID:        id,
			Role:      asString(row[1]),
			Content:   asString(row[2]),
			Timestamp: asTime(row[3]),
		})
	}
	return turns, nil
}

// GetTurn returns nil, nil when no turn has the id.
func (s *SQLiteStore) GetTurn(ctx context.Context, id int64) (*Turn, error) {
	turns, err := s.SelectTurns(ctx, `"id" = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, nil
	}
	return &turns[0], nil
}

// UserTurnPreviews lists the most recent user turns, newest first, with their
// content cut to a short preview.
func (s *SQLiteStore) UserTurnPreviews(ctx context.Context, limit int) ([]TurnPreview, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT "id", "content", "timestamp" FROM "turns" WHERE "role" = ? ORDER BY "id" DESC LIMIT ?`,
		RoleUser, limit)
	if err != nil {
		return nil, wrapErr("query turn previews", err)
	}
	defer rows.Close()

	previews := []TurnPreview{}
	for rows.Next() {
		var p TurnPreview
		var content string
		var ts any
		if err := rows.Scan(&p.ID, &content, &ts); err != nil {
			return nil, wrapErr("scan turn preview", err)
		}
		p.Preview = preview(content)
		p.Timestamp = asTime(ts)
		previews = append(previews, p)
	}
	return previews, rows.Err()
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	return string([]rune(content)[:previewLength]) + "..."
}

// Embedding methods

// InsertEmbeddingWithLink stores vec and the link to its owning turn in one
// transaction, so a vector never exists without its link.
func (s *SQLiteStore) InsertEmbeddingWithLink(ctx context.Context, vec []float32, turnID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("begin embedding transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	rowID, err := s.embeddings.bind(tx).InsertVector(ctx, vec)
	if err != nil {
		return 0, err
	}
	if _, err := s.links.bind(tx).Insert(ctx, []any{rowID, turnID}, "embedding_row_id", "turn_id"); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapErr("commit embedding transaction", err)
	}
	return rowID, nil
}

// LinkedTurnID resolves an embedding row to its owning turn.
func (s *SQLiteStore) LinkedTurnID(ctx context.Context, embeddingRowID int64) (int64, error) {
	rows, err := s.links.Select(ctx, []string{"turn_id"}, `"embedding_row_id" = ? ORDER BY rowid LIMIT 1`, embeddingRowID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: embedding row %d", ErrLinkNotFound, embeddingRowID)
	}
	return asInt64(rows[0][0])
}

func (s *SQLiteStore) SearchSimilar(ctx context.Context, queries [][]float32, k int) ([]Hit, error) {
	return s.embeddings.SearchSimilar(ctx, queries, k)
}

// Destroy drops every table. Rows are only ever removed this way.
func (s *SQLiteStore) Destroy(ctx context.Context) error {
	tables := s.Tables()
	var errs []error
	for i := len(tables) - 1; i >= 0; i-- {
		if err := tables[i].DeleteTable(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Printf("[store] dropped %d tables", len(tables))
	return nil
}
