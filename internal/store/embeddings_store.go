package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cogsensor/internal/embedding"
	"cogsensor/internal/logging"
)

// Compile-time assertion: LocalStore satisfies embedding.Store.
var _ embedding.Store = (*LocalStore)(nil)

// GetEmbedding returns the stored embedding for (conversationID, modelID),
// or nil if no row exists.
func (s *LocalStore) GetEmbedding(ctx context.Context, conversationID, modelID string) (*embedding.Embedding, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT vector_json, text_length, created_at FROM embeddings WHERE conversation_id = ? AND model_id = ?`,
		conversationID, modelID)

	var vectorJSON string
	var textLength int
	var createdAt time.Time
	if err := row.Scan(&vectorJSON, &textLength, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get embedding: %w", err)
	}

	vec, err := fastParseVectorJSON([]byte(vectorJSON), nil)
	if err != nil {
		return nil, fmt.Errorf("parse stored vector: %w", err)
	}

	return &embedding.Embedding{
		ConversationID: conversationID,
		Vector:         vec,
		ModelID:        modelID,
		TextLength:     textLength,
		CreatedAt:      createdAt,
	}, nil
}

// PutEmbedding persists an embedding row, replacing any existing row for the
// same (conversation_id, model_id), and mirrors it into vec_index when a
// vec0 backend is active.
func (s *LocalStore) PutEmbedding(ctx context.Context, e embedding.Embedding) error {
	vectorJSON, err := json.Marshal(e.Vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embeddings (conversation_id, model_id, vector_json, text_length, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (conversation_id, model_id) DO UPDATE SET
		   vector_json = excluded.vector_json,
		   text_length = excluded.text_length,
		   created_at = excluded.created_at`,
		e.ConversationID, e.ModelID, string(vectorJSON), e.TextLength, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("put embedding: %w", err)
	}

	if s.vectorExt {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO vec_index (embedding, conversation_id) VALUES (?, ?)`,
			encodeFloat32(e.Vector), e.ConversationID); err != nil {
			logging.Get(logging.CategoryStore).Warn("vec_index mirror write failed for %s: %v", e.ConversationID, err)
		}
	}

	return nil
}

// AllEmbeddings returns every embedding for modelID.
func (s *LocalStore) AllEmbeddings(ctx context.Context, modelID string) ([]embedding.Embedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, vector_json, text_length, created_at FROM embeddings WHERE model_id = ?`,
		modelID)
	if err != nil {
		return nil, fmt.Errorf("query all embeddings: %w", err)
	}
	defer rows.Close()

	var out []embedding.Embedding
	for rows.Next() {
		var conversationID, vectorJSON string
		var textLength int
		var createdAt time.Time
		if err := rows.Scan(&conversationID, &vectorJSON, &textLength, &createdAt); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		vec, err := fastParseVectorJSON([]byte(vectorJSON), nil)
		if err != nil {
			return nil, fmt.Errorf("parse stored vector for %s: %w", conversationID, err)
		}
		out = append(out, embedding.Embedding{
			ConversationID: conversationID,
			Vector:         vec,
			ModelID:        modelID,
			TextLength:     textLength,
			CreatedAt:      createdAt,
		})
	}
	return out, rows.Err()
}

// DropEmbeddingsByModel removes every row for a stale model identifier, and
// clears its rows from the vec_index mirror.
func (s *LocalStore) DropEmbeddingsByModel(ctx context.Context, modelID string) error {
	conversationIDs, err := s.conversationIDsForModel(ctx, modelID)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE model_id = ?`, modelID); err != nil {
		return fmt.Errorf("drop embeddings by model: %w", err)
	}

	if s.vectorExt {
		dropped := make(map[string]bool, len(conversationIDs))
		for _, id := range conversationIDs {
			dropped[id] = true
		}
		vecTablesMu.RLock()
		tbl := vecTables["vec_index"]
		vecTablesMu.RUnlock()
		if tbl != nil {
			tbl.DeleteWhere(func(conversationID string) bool { return dropped[conversationID] })
		}
	}

	return nil
}

func (s *LocalStore) conversationIDsForModel(ctx context.Context, modelID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT conversation_id FROM embeddings WHERE model_id = ?`, modelID)
	if err != nil {
		return nil, fmt.Errorf("query conversation ids for model: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
