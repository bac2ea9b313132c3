package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/google/uuid"
)

// SocialRepository 点赞、评分与引用链接
type SocialRepository struct {
	db *sql.DB
}

func NewSocialRepository(db *sql.DB) *SocialRepository {
	return &SocialRepository{db: db}
}

// ToggleLike 已点赞则取消，否则点赞；计数与明细在同一事务中更新
func (r *SocialRepository) ToggleLike(ctx context.Context, memeID, userID string) (*model.LikeStatus, error) {
	var status model.LikeStatus
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := requireMeme(ctx, tx, memeID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM likes WHERE meme_id = ? AND user_id = ?", memeID, userID)
		if err != nil {
			return fmt.Errorf("while removing like: %w", err)
		}
		removed, _ := res.RowsAffected()

		if removed > 0 {
			_, err = tx.ExecContext(ctx,
				"UPDATE memes SET likes_count = MAX(likes_count - 1, 0) WHERE id = ?", memeID)
		} else {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO likes (id, meme_id, user_id, created_at) VALUES (?, ?, ?, ?)",
				uuid.NewString(), memeID, userID, time.Now().UTC())
			if err == nil {
				_, err = tx.ExecContext(ctx,
					"UPDATE memes SET likes_count = likes_count + 1 WHERE id = ?", memeID)
			}
		}
		if err != nil {
			return fmt.Errorf("while toggling like: %w", err)
		}

		status.Liked = removed == 0
		return tx.QueryRowContext(ctx, "SELECT likes_count FROM memes WHERE id = ?", memeID).Scan(&status.LikesCount)
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// LikeStatus userID 为空时 Liked 恒为 false
func (r *SocialRepository) LikeStatus(ctx context.Context, memeID, userID string) (*model.LikeStatus, error) {
	var status model.LikeStatus
	err := r.db.QueryRowContext(ctx, "SELECT likes_count FROM memes WHERE id = ?", memeID).Scan(&status.LikesCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if userID != "" {
		liked, err := r.hasLike(ctx, memeID, userID)
		if err != nil {
			return nil, err
		}
		status.Liked = liked
	}
	return &status, nil
}

// Rate 新增或修改用户评分，同时维护 rating_sum/rating_count/average_rating
func (r *SocialRepository) Rate(ctx context.Context, memeID, userID string, value int) (*model.RatingStatus, error) {
	if value < 1 || value > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5, got %d", value)
	}

	var status model.RatingStatus
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := requireMeme(ctx, tx, memeID); err != nil {
			return err
		}

		var old int
		err := tx.QueryRowContext(ctx,
			"SELECT value FROM ratings WHERE meme_id = ? AND user_id = ?", memeID, userID).Scan(&old)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				"INSERT INTO ratings (id, meme_id, user_id, value, created_at) VALUES (?, ?, ?, ?, ?)",
				uuid.NewString(), memeID, userID, value, time.Now().UTC())
			if err == nil {
				_, err = tx.ExecContext(ctx, `
UPDATE memes SET rating_sum = rating_sum + ?, rating_count = rating_count + 1,
  average_rating = CAST(rating_sum + ? AS REAL) / (rating_count + 1)
WHERE id = ?`, value, value, memeID)
			}
		case err == nil:
			_, err = tx.ExecContext(ctx,
				"UPDATE ratings SET value = ? WHERE meme_id = ? AND user_id = ?", value, memeID, userID)
			if err == nil {
				_, err = tx.ExecContext(ctx, `
UPDATE memes SET rating_sum = rating_sum - ? + ?,
  average_rating = CAST(rating_sum - ? + ? AS REAL) / rating_count
WHERE id = ?`, old, value, old, value, memeID)
			}
		}
		if err != nil {
			return fmt.Errorf("while saving rating: %w", err)
		}

		var avg float64
		if err := tx.QueryRowContext(ctx,
			"SELECT average_rating, rating_count FROM memes WHERE id = ?", memeID).Scan(&avg, &status.RatingCount); err != nil {
			return err
		}
		status.AverageRating = RoundRating(avg)
		v := value
		status.UserRating = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// RatingStatus userID 为空时 UserRating 为 nil
func (r *SocialRepository) RatingStatus(ctx context.Context, memeID, userID string) (*model.RatingStatus, error) {
	var (
		status model.RatingStatus
		avg    float64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT average_rating, rating_count FROM memes WHERE id = ?", memeID).Scan(&avg, &status.RatingCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	status.AverageRating = RoundRating(avg)

	if userID != "" {
		status.UserRating, err = r.userRating(ctx, memeID, userID)
		if err != nil {
			return nil, err
		}
	}
	return &status, nil
}

// Meta 点赞、评分与认证汇总
func (r *SocialRepository) Meta(ctx context.Context, memeID, userID string) (*model.MemeMeta, error) {
	var (
		meta model.MemeMeta
		avg  float64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT likes_count, average_rating, rating_count, verified FROM memes WHERE id = ?", memeID).
		Scan(&meta.LikesCount, &avg, &meta.RatingCount, &meta.Verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	meta.AverageRating = RoundRating(avg)

	if userID != "" {
		if meta.UserLike, err = r.hasLike(ctx, memeID, userID); err != nil {
			return nil, err
		}
		if meta.UserRating, err = r.userRating(ctx, memeID, userID); err != nil {
			return nil, err
		}
	}
	return &meta, nil
}

// AddLink 记录表情包的一个外部引用
func (r *SocialRepository) AddLink(ctx context.Context, memeID, url string) (*model.UsageLink, error) {
	link := &model.UsageLink{
		ID:      uuid.NewString(),
		URL:     url,
		MemeID:  memeID,
		AddedAt: time.Now().UTC(),
	}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := requireMeme(ctx, tx, memeID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO usage_links (id, meme_id, url, added_at) VALUES (?, ?, ?, ?)",
			link.ID, link.MemeID, link.URL, link.AddedAt)
		if err != nil {
			return fmt.Errorf("while adding usage link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// ListLinks 最新的在前
func (r *SocialRepository) ListLinks(ctx context.Context, memeID string) ([]model.UsageLink, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, meme_id, url, added_at FROM usage_links WHERE meme_id = ? ORDER BY added_at DESC, rowid DESC", memeID)
	if err != nil {
		return nil, fmt.Errorf("while listing usage links: %w", err)
	}
	defer rows.Close()

	links := []model.UsageLink{}
	for rows.Next() {
		var l model.UsageLink
		if err := rows.Scan(&l.ID, &l.MemeID, &l.URL, &l.AddedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *SocialRepository) hasLike(ctx context.Context, memeID, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM likes WHERE meme_id = ? AND user_id = ?", memeID, userID).Scan(&n)
	return n > 0, err
}

func (r *SocialRepository) userRating(ctx context.Context, memeID, userID string) (*int, error) {
	var v int
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM ratings WHERE meme_id = ? AND user_id = ?", memeID, userID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func requireMeme(ctx context.Context, q execer, memeID string) error {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM memes WHERE id = ?", memeID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RoundRating 保留一位小数
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
