package core

import (
	"context"
	"fmt"
	"log"

	"gwi.com/chat-memory/internal/embed"
	"gwi.com/chat-memory/internal/llm"
	"gwi.com/chat-memory/internal/store"
)

// SaveReport counts the rows written by one Save.
type SaveReport struct {
	Turns             int `json:"turns"`
	Vectors           int `json:"vectors"`
	Links             int `json:"links"`
	SkippedEmbeddings int `json:"skipped_embeddings"`
}

// HistoryPersister writes turns along with the embeddings of their chunks.
type HistoryPersister struct {
	pipeline *embed.Pipeline
}

func NewHistoryPersister(pipeline *embed.Pipeline) *HistoryPersister {
	return &HistoryPersister{pipeline: pipeline}
}

// Save inserts each turn, then embeds its content and links every vector to
// the new turn id. A turn whose content cannot be embedded is still kept.
// Storage errors stop the batch and are returned with the partial report.
func (p *HistoryPersister) Save(ctx context.Context, st *store.SQLiteStore, turns []llm.Message) (SaveReport, error) {
	var report SaveReport
	for _, turn := range turns {
		turnID, err := st.InsertTurn(ctx, turn.Role, turn.Content)
		if err != nil {
			return report, fmt.Errorf("failed to save turn: %w", err)
		}
		report.Turns++

		vectors, err := p.pipeline.Embed(ctx, turn.Content)
		if err != nil {
			log.Printf("Skipping embeddings for turn %d: %v", turnID, err)
			report.SkippedEmbeddings++
			continue
		}

		for _, vec := range vectors {
			if _, err := st.InsertEmbeddingWithLink(ctx, vec, turnID); err != nil {
				return report, fmt.Errorf("failed to index turn %d: %w", turnID, err)
			}
			report.Vectors++
			report.Links++
		}
	}
	log.Printf("Saved %d turns with %d embeddings.", report.Turns, report.Vectors)
	return report, nil
}
