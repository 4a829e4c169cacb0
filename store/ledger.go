package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/secretdrop/feed-service/feed"
	"github.com/uptrace/bun"
)

// ToggleLike removes the like held by tokenKey on the post, or adds one if
// there is none. The entry and the post's like count change in one
// transaction; like_count is always recomputed from the entries.
func (s *Store) ToggleLike(ctx context.Context, postID, tokenKey string) (feed.LikeState, error) {
	var st feed.LikeState
	err := s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.lockPost(ctx, tx, postID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"DELETE FROM post_likes WHERE post_id = ? AND token_key = ?", postID, tokenKey)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if removed == 0 {
			like := &postLike{PostID: postID, TokenKey: tokenKey, CreatedAt: s.timestamp()}
			if _, err := tx.NewInsert().Model(like).Exec(ctx); err != nil {
				return fmt.Errorf("insert like: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE posts SET like_count = (SELECT COUNT(*) FROM post_likes WHERE post_id = ?) WHERE id = ?",
			postID, postID)
		if err != nil {
			return fmt.Errorf("update like count: %w", err)
		}

		p, err := getPost(ctx, tx, postID)
		if err != nil {
			return err
		}
		st = feed.LikeState{Post: p, Liked: removed == 0}
		return nil
	})
	if err != nil {
		return feed.LikeState{}, classify(err)
	}
	return st, nil
}

// ToggleReaction applies emoji for tokenKey on the post: the same emoji clears
// the reaction, a different one replaces it. Counts are aggregated from the
// entries inside the same transaction.
func (s *Store) ToggleReaction(ctx context.Context, postID, tokenKey string, emoji feed.Emoji) (feed.ReactionState, error) {
	if _, err := feed.ParseEmoji(string(emoji)); err != nil {
		return feed.ReactionState{}, err
	}

	var st feed.ReactionState
	err := s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.lockPost(ctx, tx, postID); err != nil {
			return err
		}

		var current string
		err := tx.NewSelect().
			Model((*postReaction)(nil)).
			Column("emoji").
			Where("post_id = ?", postID).
			Where("token_key = ?", tokenKey).
			Scan(ctx, &current)

		active := emoji
		switch {
		case errors.Is(err, sql.ErrNoRows):
			r := &postReaction{PostID: postID, TokenKey: tokenKey, Emoji: string(emoji), UpdatedAt: s.timestamp()}
			if _, err := tx.NewInsert().Model(r).Exec(ctx); err != nil {
				return fmt.Errorf("insert reaction: %w", err)
			}
		case err != nil:
			return fmt.Errorf("select reaction: %w", err)
		case current == string(emoji):
			_, err := tx.ExecContext(ctx,
				"DELETE FROM post_reactions WHERE post_id = ? AND token_key = ?", postID, tokenKey)
			if err != nil {
				return fmt.Errorf("delete reaction: %w", err)
			}
			active = ""
		default:
			_, err := tx.ExecContext(ctx,
				"UPDATE post_reactions SET emoji = ?, updated_at = ? WHERE post_id = ? AND token_key = ?",
				string(emoji), s.timestamp(), postID, tokenKey)
			if err != nil {
				return fmt.Errorf("update reaction: %w", err)
			}
		}

		p, err := getPost(ctx, tx, postID)
		if err != nil {
			return err
		}
		st = feed.ReactionState{Post: p, Active: active}
		return nil
	})
	if err != nil {
		return feed.ReactionState{}, classify(err)
	}
	return st, nil
}

// lockPost checks that the post exists and, on PostgreSQL, locks its row until
// the transaction ends so toggles on the same post apply one at a time. SQLite
// transactions are opened with BEGIN IMMEDIATE and are already serialized.
func (s *Store) lockPost(ctx context.Context, tx bun.Tx, id string) error {
	q := tx.NewSelect().
		Model((*post)(nil)).
		Column("id").
		Where("id = ?", id)
	if s.pg {
		q = q.For("UPDATE")
	}
	var got string
	if err := q.Scan(ctx, &got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("post %s: %w", id, feed.ErrNotFound)
		}
		return fmt.Errorf("lock post: %w", err)
	}
	return nil
}
