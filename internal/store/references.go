package store

import (
	"context"
	"encoding/json"
	"fmt"

	"cardscan/internal/imagehash"
	"cardscan/internal/refindex"
)

// ReplaceReferenceCards swaps the persisted reference set for a freshly
// built index.
func (s *Store) ReplaceReferenceCards(ctx context.Context, cards []refindex.ReferenceCard) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reference tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM reference_cards"); err != nil {
		return fmt.Errorf("clear reference cards: %w", err)
	}
	for _, card := range cards {
		metadata := "{}"
		if len(card.Metadata) > 0 {
			encoded, err := json.Marshal(card.Metadata)
			if err != nil {
				return fmt.Errorf("encode reference metadata: %w", err)
			}
			metadata = string(encoded)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reference_cards (id, name, hash_full, hash_crop, hash_inner, preview_ref, metadata_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			card.ID,
			card.Name,
			int64(card.Triple.Full),
			int64(card.Triple.Crop),
			int64(card.Triple.Inner),
			card.PreviewRef,
			metadata,
		)
		if err != nil {
			return fmt.Errorf("insert reference card %s: %w", card.ID, err)
		}
	}
	return tx.Commit()
}

// LoadReferenceCards reads the persisted reference set for index rebuild.
func (s *Store) LoadReferenceCards(ctx context.Context) ([]refindex.ReferenceCard, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, hash_full, hash_crop, hash_inner, preview_ref, metadata_json FROM reference_cards")
	if err != nil {
		return nil, fmt.Errorf("load reference cards: %w", err)
	}
	defer rows.Close()

	var cards []refindex.ReferenceCard
	for rows.Next() {
		var (
			card              refindex.ReferenceCard
			full, crop, inner int64
			metadata          string
		)
		if err := rows.Scan(&card.ID, &card.Name, &full, &crop, &inner, &card.PreviewRef, &metadata); err != nil {
			return nil, fmt.Errorf("scan reference card: %w", err)
		}
		card.Triple = imagehash.Triple{
			Full:  imagehash.Hash(full),
			Crop:  imagehash.Hash(crop),
			Inner: imagehash.Hash(inner),
		}
		if metadata != "" && metadata != "{}" {
			_ = json.Unmarshal([]byte(metadata), &card.Metadata)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}
