package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"go.uber.org/zap"
)

const (
	SubfolderOriginals   = "originals"
	SubfolderWatermarked = "watermarked"

	localURLPrefix = "/uploads/"
)

// StoreObject 待保存的文件
type StoreObject struct {
	Subfolder   string
	Filename    string
	ContentType string
	Data        []byte
	Meta        map[string]string
}

// StoredFile 保存结果，CID 仅 IPFS 后端有值
type StoredFile struct {
	URL        string `json:"url"`
	CID        string `json:"cid,omitempty"`
	GatewayURL string `json:"gatewayUrl,omitempty"`
}

// FileStore 原图与水印图的存储后端
type FileStore interface {
	Save(ctx context.Context, obj StoreObject) (*StoredFile, error)
	Delete(ctx context.Context, url string) error
}

// LocalStore 保存到本地上传目录，由 /uploads 静态路由对外提供
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, publicBaseURL string) *LocalStore {
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (s *LocalStore) Save(ctx context.Context, obj StoreObject) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindStorage, "local save", err)
	}

	folder := filepath.Join(s.dir, obj.Subfolder)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, newError(KindStorage, "local save", err)
	}

	name := utils.GenerateID() + extensionFor(obj.Filename, obj.ContentType)
	if err := os.WriteFile(filepath.Join(folder, name), obj.Data, 0o644); err != nil {
		return nil, newError(KindStorage, "local save", err)
	}

	url := s.baseURL + localURLPrefix + obj.Subfolder + "/" + name
	utils.Logger.Debug("file saved locally", zap.String("url", url), zap.Int("size", len(obj.Data)))
	return &StoredFile{URL: url}, nil
}

// Delete 只删除本地上传目录中的文件，其它 URL 忽略
func (s *LocalStore) Delete(ctx context.Context, url string) error {
	rel, ok := s.localPath(url)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, rel))
	if err != nil && !os.IsNotExist(err) {
		return newError(KindStorage, "local delete", err)
	}
	return nil
}

func (s *LocalStore) localPath(url string) (string, bool) {
	url = strings.TrimPrefix(url, s.baseURL)
	if !strings.HasPrefix(url, localURLPrefix) {
		return "", false
	}
	rel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(url, localURLPrefix)))
	if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", false
	}
	return rel, true
}

func extensionFor(filename, contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	}
	if ext := filepath.Ext(filename); ext != "" {
		return strings.ToLower(ext)
	}
	return ".bin"
}

// NewFileStore 按配置创建存储后端
func NewFileStore(backend string, local *LocalStore, ipfs *IPFSClient) (FileStore, error) {
	switch backend {
	case config.StorageLocal:
		return local, nil
	case config.StorageIPFS:
		if ipfs == nil || !ipfs.Configured() {
			return nil, fmt.Errorf("ipfs storage selected but no Pinata credentials configured")
		}
		return ipfs, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", backend)
}
