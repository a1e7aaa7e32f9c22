package store

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, dimensions int) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", dimensions)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStoreRejectsZeroDimensions(t *testing.T) {
	if _, err := NewSQLiteStore(":memory:", 0); err == nil {
		t.Fatalf("expected error for zero dimensions")
	}
}

func TestTablesByName(t *testing.T) {
	s := newTestStore(t, 4)
	tests := []struct {
		name string
		kind TableKind
	}{
		{TurnsTable, KindRelational},
		{EmbeddingsTable, KindVector},
		{LinksTable, KindRelational},
	}
	for _, tc := range tests {
		tbl, ok := s.Table(tc.name)
		if !ok {
			t.Fatalf("table %s not found", tc.name)
		}
		if tbl.Kind() != tc.kind {
			t.Fatalf("table %s: expected kind %s, got %s", tc.name, tc.kind, tbl.Kind())
		}
	}
	if _, ok := s.Table("missing"); ok {
		t.Fatalf("expected unknown table lookup to fail")
	}
}

func TestInsertTurnAssignsIncreasingIDs(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	first, err := s.InsertTurn(ctx, RoleUser, "hello")
	if err != nil {
		t.Fatalf("InsertTurn failed: %v", err)
	}
	second, err := s.InsertTurn(ctx, RoleAssistant, "hi there")
	if err != nil {
		t.Fatalf("InsertTurn failed: %v", err)
	}
	if second <= first {
		t.Fatalf("expected increasing ids, got %d then %d", first, second)
	}

	turn, err := s.GetTurn(ctx, second)
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if turn == nil || turn.Role != RoleAssistant || turn.Content != "hi there" {
		t.Fatalf("unexpected turn %+v", turn)
	}
	if turn.Timestamp.IsZero() {
		t.Fatalf("expected server-assigned timestamp")
	}
}

func TestInsertTurnRejectsUnknownRole(t *testing.T) {
	s := newTestStore(t, 4)
	if _, err := s.InsertTurn(context.Background(), "system", "nope"); err == nil {
		t.Fatalf("expected role check to reject insert")
	}
}

func TestSelectTurnsNotFoundIsEmpty(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	turns, err := s.SelectTurns(ctx, `"role" = ?`, RoleUser)
	if err != nil {
		t.Fatalf("SelectTurns failed: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(turns))
	}
	turn, err := s.GetTurn(ctx, 42)
	if err != nil || turn != nil {
		t.Fatalf("expected nil, nil for missing turn, got %+v, %v", turn, err)
	}
}

func TestSelectTurnsIsInIDOrder(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	// An index on content makes a range scan visit rows in content order.
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX "turns_content" ON "turns" ("content")`); err != nil {
		t.Fatalf("CREATE INDEX failed: %v", err)
	}
	var ids []int64
	for _, content := range []string{"charlie", "alpha", "bravo"} {
		id, err := s.InsertTurn(ctx, RoleUser, content)
		if err != nil {
			t.Fatalf("InsertTurn failed: %v", err)
		}
		ids = append(ids, id)
	}

	for _, tc := range []struct {
		predicate string
		args      []any
	}{
		{predicate: ""},
		{predicate: `"content" >= ?`, args: []any{"a"}},
	} {
		turns, err := s.SelectTurns(ctx, tc.predicate, tc.args...)
		if err != nil {
			t.Fatalf("SelectTurns(%q) failed: %v", tc.predicate, err)
		}
		if len(turns) != len(ids) {
			t.Fatalf("SelectTurns(%q): expected %d turns, got %d", tc.predicate, len(ids), len(turns))
		}
		for i, turn := range turns {
			if turn.ID != ids[i] {
				t.Fatalf("SelectTurns(%q): position %d has id %d, want %d", tc.predicate, i, turn.ID, ids[i])
			}
		}
	}
}

func TestValuesAreBoundNotSpliced(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()
	hostile := `x'); DROP TABLE "turns"; --`

	id, err := s.InsertTurn(ctx, RoleUser, hostile)
	if err != nil {
		t.Fatalf("InsertTurn failed: %v", err)
	}
	turns, err := s.SelectTurns(ctx, `"content" = ?`, hostile)
	if err != nil {
		t.Fatalf("SelectTurns failed: %v", err)
	}
	if len(turns) != 1 || turns[0].ID != id {
		t.Fatalf("expected hostile content stored verbatim, got %+v", turns)
	}
}

func TestInvalidIdentifiersAreRejected(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	if _, err := s.Turns().Select(ctx, []string{`content" FROM turns; --`}, ""); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier for field, got %v", err)
	}
	if _, err := s.Turns().Insert(ctx, []any{"user", "x"}, "role", "content;"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier for column, got %v", err)
	}
	bad := NewRelationalTable(s.db, "bad name", `"a" TEXT`)
	if err := bad.CreateIfAbsent(ctx); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier for table, got %v", err)
	}
}

func TestInsertColumnCountMustMatch(t *testing.T) {
	s := newTestStore(t, 4)
	if _, err := s.Turns().Insert(context.Background(), []any{"user"}, "role", "content"); err == nil {
		t.Fatalf("expected column/value count mismatch error")
	}
}

func TestVectorInsertChecksDimension(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	if _, err := s.Embeddings().InsertVector(ctx, []float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := s.Embeddings().Insert(ctx, []any{[]byte{1, 2, 3, 4}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch for short blob, got %v", err)
	}
	if _, err := s.Embeddings().Insert(ctx, []any{"not a vector"}); err == nil {
		t.Fatalf("expected error for unsupported value type")
	}
}

func TestVectorBlobIsLittleEndianFloat32(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()
	vec := []float32{0.5, -1, 2}

	rowID, err := s.Embeddings().Insert(ctx, []any{vec})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if rowID != 1 {
		t.Fatalf("expected first rowid 1, got %d", rowID)
	}

	rows, err := s.Embeddings().Select(ctx, []string{"rowid", "embedding"}, "rowid = ?", rowID)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	blob, ok := rows[0][1].([]byte)
	if !ok {
		t.Fatalf("expected []byte blob, got %T", rows[0][1])
	}
	want := []byte{0x00, 0x00, 0x00, 0x3f, 0x00, 0x00, 0x80, 0xbf, 0x00, 0x00, 0x00, 0x40}
	if !bytes.Equal(blob, want) {
		t.Fatalf("unexpected blob % x", blob)
	}
	decoded, err := DecodeVector(blob)
	if err != nil {
		t.Fatalf("DecodeVector failed: %v", err)
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Fatalf("decoded mismatch at %d", i)
		}
	}
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated blob")
	}
}

func insertVectors(t *testing.T, s *SQLiteStore, vectors ...[]float32) {
	t.Helper()
	for _, v := range vectors {
		if _, err := s.Embeddings().InsertVector(context.Background(), v); err != nil {
			t.Fatalf("InsertVector failed: %v", err)
		}
	}
}

func TestSearchSimilarTiesFollowInsertionOrder(t *testing.T) {
	s := newTestStore(t, 2)
	insertVectors(t, s,
		[]float32{1, 0},  // 1
		[]float32{0, 1},  // 2
		[]float32{1, 0},  // 3
		[]float32{-1, 0}, // 4
	)

	hits, err := s.SearchSimilar(context.Background(), [][]float32{{1, 0}}, 2)
	if err != nil {
		t.Fatalf("SearchSimilar failed: %v", err)
	}
	if len(hits) != 2 || hits[0].RowID != 1 || hits[1].RowID != 3 {
		t.Fatalf("expected rows [1 3], got %+v", hits)
	}
	if hits[0].Distance != 0 || hits[1].Distance != 0 {
		t.Fatalf("expected zero distances, got %+v", hits)
	}
}

func TestSearchSimilarMergesQueries(t *testing.T) {
	s := newTestStore(t, 2)
	insertVectors(t, s,
		[]float32{1, 0},
		[]float32{0, 1},
		[]float32{1, 0},
		[]float32{-1, 0},
	)

	hits, err := s.SearchSimilar(context.Background(), [][]float32{{1, 0}, {0, 1}}, 2)
	if err != nil {
		t.Fatalf("SearchSimilar failed: %v", err)
	}
	// First query finds 1 and 3 at 0. Second finds 2 at 0, then 1 at 2
	// ahead of 3 at 2.
	want := []Hit{{1, 0}, {2, 0}, {3, 0}, {1, 2}}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %+v", len(want), hits)
	}
	for i := range want {
		if hits[i] != want[i] {
			t.Fatalf("hit %d: expected %+v, got %+v", i, want[i], hits[i])
		}
	}

	hits, err = s.SearchSimilar(context.Background(), [][]float32{{1, 0}, {0, 1}}, 1)
	if err != nil {
		t.Fatalf("SearchSimilar failed: %v", err)
	}
	if len(hits) != 2 || hits[0].RowID != 1 || hits[1].RowID != 2 {
		t.Fatalf("expected rows [1 2], got %+v", hits)
	}
}

func TestSearchSimilarEmptyTable(t *testing.T) {
	s := newTestStore(t, 2)
	hits, err := s.SearchSimilar(context.Background(), [][]float32{{1, 0}}, 3)
	if err != nil {
		t.Fatalf("SearchSimilar failed: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %+v", hits)
	}
}

func TestSearchSimilarFailures(t *testing.T) {
	ctx := context.Background()

	s := newTestStore(t, 2)
	if _, err := s.SearchSimilar(ctx, [][]float32{{1, 0, 0}}, 3); !errors.Is(err, ErrSearchFailure) || !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected dimension search failure, got %v", err)
	}
	if _, err := s.SearchSimilar(ctx, [][]float32{{1, 0}}, 0); !errors.Is(err, ErrSearchFailure) {
		t.Fatalf("expected ErrSearchFailure for k=0, got %v", err)
	}

	if err := s.Destroy(ctx); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := s.SearchSimilar(ctx, [][]float32{{1, 0}}, 3); !errors.Is(err, ErrSearchFailure) {
		t.Fatalf("expected ErrSearchFailure on missing table, got %v", err)
	}

	closed := newTestStore(t, 2)
	closed.Close()
	if _, err := closed.SearchSimilar(ctx, [][]float32{{1, 0}}, 3); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable on closed store, got %v", err)
	}
}

func TestInsertEmbeddingWithLink(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	turnID, err := s.InsertTurn(ctx, RoleUser, "owner")
	if err != nil {
		t.Fatalf("InsertTurn failed: %v", err)
	}
	rowID, err := s.InsertEmbeddingWithLink(ctx, []float32{0, 1}, turnID)
	if err != nil {
		t.Fatalf("InsertEmbeddingWithLink failed: %v", err)
	}
	got, err := s.LinkedTurnID(ctx, rowID)
	if err != nil {
		t.Fatalf("LinkedTurnID failed: %v", err)
	}
	if got != turnID {
		t.Fatalf("expected turn %d, got %d", turnID, got)
	}

	if _, err := s.LinkedTurnID(ctx, rowID+100); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestInsertEmbeddingWithLinkRollsBack(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	if _, err := s.InsertEmbeddingWithLink(ctx, []float32{0, 1}, 999); err == nil {
		t.Fatalf("expected foreign key violation for unknown turn")
	}
	rows, err := s.Embeddings().Select(ctx, []string{"rowid"}, "")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected rolled back vector insert, found %d rows", len(rows))
	}
}

func TestUserTurnPreviews(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()
	long := strings.Repeat("a", 60)

	for _, turn := range []struct{ role, content string }{
		{RoleUser, "short question"},
		{RoleAssistant, "answer"},
		{RoleUser, long},
	} {
		if _, err := s.InsertTurn(ctx, turn.role, turn.content); err != nil {
			t.Fatalf("InsertTurn failed: %v", err)
		}
	}

	previews, err := s.UserTurnPreviews(ctx, 10)
	if err != nil {
		t.Fatalf("UserTurnPreviews failed: %v", err)
	}
	if len(previews) != 2 {
		t.Fatalf("expected 2 user previews, got %d", len(previews))
	}
	if previews[0].Preview != strings.Repeat("a", 50)+"..." {
		t.Fatalf("unexpected truncated preview %q", previews[0].Preview)
	}
	if previews[1].Preview != "short question" {
		t.Fatalf("unexpected preview %q", previews[1].Preview)
	}
}

func TestDestroyDropsEverything(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()
	if _, err := s.InsertTurn(ctx, RoleUser, "gone soon"); err != nil {
		t.Fatalf("InsertTurn failed: %v", err)
	}
	if err := s.Destroy(ctx); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := s.SelectTurns(ctx, ""); err == nil {
		t.Fatalf("expected select on dropped table to fail")
	}
	if err := s.initSchema(ctx); err != nil {
		t.Fatalf("recreating schema failed: %v", err)
	}
	turns, err := s.SelectTurns(ctx, "")
	if err != nil || len(turns) != 0 {
		t.Fatalf("expected empty recreated table, got %d turns, %v", len(turns), err)
	}
}
