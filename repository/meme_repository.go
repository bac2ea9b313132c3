package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diyapandey-1623/meme-ip-vault/model"
)

const memeColumns = `id, title, description, license, creator_name, creator_address,
  image_url, watermarked_image_url, ipfs_hash, hash, md5, ip_id, tx_hash,
  license_terms_id, on_chain, in_marketplace, verified, likes_count,
  rating_sum, rating_count, average_rating, created_at`

// MemeRepository 表情包记录的持久化
type MemeRepository struct {
	db *sql.DB
}

func NewMemeRepository(db *sql.DB) *MemeRepository {
	return &MemeRepository{db: db}
}

// Create 插入一条记录，CreatedAt 为空时取当前时间
func (r *MemeRepository) Create(ctx context.Context, m *model.Meme) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO memes (`+memeColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Description, string(m.License), m.CreatorName, m.CreatorAddress,
		m.ImageURL, m.WatermarkedImageURL, m.IPFSHash, m.Hash, m.MD5, m.IPID, m.TxHash,
		m.LicenseTermsID, m.OnChain, m.InMarketplace, m.Verified, m.LikesCount,
		m.RatingSum, m.RatingCount, m.AverageRating, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("while inserting meme %s: %w", m.ID, err)
	}
	return nil
}

// GetByID 不存在时返回 nil, nil
func (r *MemeRepository) GetByID(ctx context.Context, id string) (*model.Meme, error) {
	return r.getOne(ctx, r.db, "id = ?", id)
}

// GetByMD5 按内容摘要查找，返回最早的一条
func (r *MemeRepository) GetByMD5(ctx context.Context, md5 string) (*model.Meme, error) {
	return r.getOne(ctx, r.db, "md5 = ? ORDER BY created_at ASC LIMIT 1", md5)
}

func (r *MemeRepository) getOne(ctx context.Context, q execer, where string, args ...any) (*model.Meme, error) {
	row := q.QueryRowContext(ctx, "SELECT "+memeColumns+" FROM memes WHERE "+where, args...)
	m, err := scanMeme(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// likeEscaper 转义 LIKE 通配符，配合 ESCAPE '\'
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// List 分页查询，返回本页记录与总数
func (r *MemeRepository) List(ctx context.Context, q model.ListQuery) ([]*model.Meme, int, error) {
	var (
		conds []string
		args  []any
	)
	if q.MarketplaceOnly {
		conds = append(conds, "in_marketplace = TRUE")
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		conds = append(conds, `(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR creator_name LIKE ? ESCAPE '\')`)
		pattern := "%" + likeEscaper.Replace(s) + "%"
		args = append(args, pattern, pattern, pattern)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memes"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("while counting memes: %w", err)
	}

	order := " ORDER BY created_at DESC, rowid DESC"
	switch q.Sort {
	case model.SortLikes:
		order = " ORDER BY likes_count DESC, created_at DESC, rowid DESC"
	case model.SortRating:
		order = " ORDER BY average_rating DESC, rating_count DESC, created_at DESC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+memeColumns+" FROM memes"+where+order+" LIMIT ? OFFSET ?",
		append(args, limit, max(q.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("while listing memes: %w", err)
	}
	defer rows.Close()

	memes, err := scanMemes(rows)
	if err != nil {
		return nil, 0, err
	}
	return memes, total, nil
}

// Update 修改可编辑字段，不存在时返回 ErrNotFound
func (r *MemeRepository) Update(ctx context.Context, id string, req model.UpdateMemeRequest) (*model.Meme, error) {
	var (
		sets []string
		args []any
	)
	if req.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *req.Title)
	}
	if req.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *req.Description)
	}
	if req.License != nil {
		sets = append(sets, "license = ?")
		args = append(args, string(*req.License))
	}
	if req.InMarketplace != nil {
		sets = append(sets, "in_marketplace = ?")
		args = append(args, *req.InMarketplace)
	}

	var updated *model.Meme
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if len(sets) > 0 {
			res, err := tx.ExecContext(ctx,
				"UPDATE memes SET "+strings.Join(sets, ", ")+" WHERE id = ?",
				append(args, id)...)
			if err != nil {
				return fmt.Errorf("while updating meme %s: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrNotFound
			}
		}
		m, err := r.getOne(ctx, tx, "id = ?", id)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrNotFound
		}
		updated = m
		return nil
	})
	return updated, err
}

// SetRegistration 写入链上注册结果
func (r *MemeRepository) SetRegistration(ctx context.Context, id, ipID, txHash, licenseTermsID string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE memes SET ip_id = ?, tx_hash = ?, license_terms_id = ?, on_chain = TRUE WHERE id = ?`,
		ipID, txHash, licenseTermsID, id)
	if err != nil {
		return fmt.Errorf("while saving registration for meme %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVerified 修改认证状态
func (r *MemeRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE memes SET verified = ? WHERE id = ?", verified, id)
	if err != nil {
		return fmt.Errorf("while verifying meme %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 删除记录，点赞、评分与引用链接级联删除
func (r *MemeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM memes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("while deleting meme %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHashes 查重用的 {id, hash, title}
func (r *MemeRepository) ListHashes(ctx context.Context) ([]model.HashEntry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, hash, title FROM memes WHERE hash <> ''")
	if err != nil {
		return nil, fmt.Errorf("while listing hashes: %w", err)
	}
	defer rows.Close()

	var entries []model.HashEntry
	for rows.Next() {
		var e model.HashEntry
		if err := rows.Scan(&e.ID, &e.Hash, &e.Title); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListUnregistered 未在链上注册的记录
func (r *MemeRepository) ListUnregistered(ctx context.Context) ([]*model.Meme, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+memeColumns+" FROM memes WHERE ip_id = '' OR on_chain = FALSE ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("while listing unregistered memes: %w", err)
	}
	defer rows.Close()
	return scanMemes(rows)
}

// Count 记录总数
func (r *MemeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memes").Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeme(s scanner) (*model.Meme, error) {
	var (
		m       model.Meme
		license string
	)
	err := s.Scan(
		&m.ID, &m.Title, &m.Description, &license, &m.CreatorName, &m.CreatorAddress,
		&m.ImageURL, &m.WatermarkedImageURL, &m.IPFSHash, &m.Hash, &m.MD5, &m.IPID, &m.TxHash,
		&m.LicenseTermsID, &m.OnChain, &m.InMarketplace, &m.Verified, &m.LikesCount,
		&m.RatingSum, &m.RatingCount, &m.AverageRating, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.License = model.License(license)
	return &m, nil
}

func scanMemes(rows *sql.Rows) ([]*model.Meme, error) {
	memes := []*model.Meme{}
	for rows.Next() {
		m, err := scanMeme(rows)
		if err != nil {
			return nil, err
		}
		memes = append(memes, m)
	}
	return memes, rows.Err()
}
