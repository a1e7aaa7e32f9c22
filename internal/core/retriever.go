package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gwi.com/chat-memory/internal/embed"
	"gwi.com/chat-memory/internal/store"
)

const NumRelevantChunks = 3 // Nearest rows fetched per question chunk

type Retriever struct {
	pipeline *embed.Pipeline
	k        int
}

func NewRetriever(pipeline *embed.Pipeline) *Retriever {
	return &Retriever{pipeline: pipeline, k: NumRelevantChunks}
}

// Search returns the stored turns closest to question, nearest first. Rows
// without a link and links to missing turns are skipped. A nil store yields
// no turns and no error.
func (r *Retriever) Search(ctx context.Context, question string, st *store.SQLiteStore) ([]store.Turn, error) {
	if st == nil {
		return nil, nil
	}

	vectors, err := r.pipeline.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	hits, err := st.SearchSimilar(ctx, vectors, r.k)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(hits))
	var turnIDs []int64
	for _, hit := range hits {
		turnID, err := st.LinkedTurnID(ctx, hit.RowID)
		if errors.Is(err, store.ErrLinkNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if seen[turnID] {
			continue
		}
		seen[turnID] = true
		turnIDs = append(turnIDs, turnID)
	}

	turns := make([]store.Turn, 0, len(turnIDs))
	for _, id := range turnIDs {
		turn, err := st.GetTurn(ctx, id)
		if err != nil {
			return nil, err
		}
		if turn == nil {
			continue
		}
		turns = append(turns, *turn)
	}
	return turns, nil
}

// Retrieve assembles the content of the turns relevant to question, separated
// by blank lines. Every failure collapses to an empty context so the question
// can still be answered without memory.
func (r *Retriever) Retrieve(ctx context.Context, question string, st *store.SQLiteStore) string {
	turns, err := r.Search(ctx, question, st)
	if err != nil {
		log.Printf("Failed to retrieve context, proceeding without it: %v", err)
		return ""
	}
	if len(turns) == 0 {
		return ""
	}

	contents := make([]string, len(turns))
	for i, turn := range turns {
		contents[i] = turn.Content
	}
	log.Printf("Retrieved %d relevant turns for question.", len(turns))
	return strings.Join(contents, "\n\n")
}
