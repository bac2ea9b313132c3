package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/google/uuid"
)

// SetupTestDB 创建已迁移的内存数据库，测试结束时自动关闭
func SetupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// NewTestMeme 构造一条可直接插入的记录
func NewTestMeme(title, hash string) *model.Meme {
	id := uuid.NewString()
	return &model.Meme{
		ID:                  id,
		Title:               title,
		License:             model.LicenseCredit,
		CreatorName:         "Anonymous",
		ImageURL:            "/uploads/originals/" + id + ".png",
		WatermarkedImageURL: "/uploads/watermarked/" + id + ".png",
		Hash:                hash,
		MD5:                 "md5-" + id,
		CreatedAt:           time.Now().UTC(),
	}
}

// MustCreateMeme 插入记录，失败则终止测试
func MustCreateMeme(t testing.TB, db *sql.DB, m *model.Meme) *model.Meme {
	t.Helper()
	if err := NewMemeRepository(db).Create(context.Background(), m); err != nil {
		t.Fatalf("failed to create meme: %v", err)
	}
	return m
}
