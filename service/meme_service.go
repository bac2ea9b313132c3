package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/diyapandey-1623/meme-ip-vault/repository"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultCreatorName = "Anonymous"

// UploadInput 一次上传的文件与表单
type UploadInput struct {
	Data        []byte
	Filename    string
	ContentType string
	Form        model.UploadRequest
}

// metadataPinner 能固定 JSON 元数据的存储后端
type metadataPinner interface {
	PinJSON(ctx context.Context, name string, content any) (*PinResult, error)
}

// CleanupReport 清理未注册表情包的结果
type CleanupReport struct {
	Memes        []*model.Meme
	Deleted      int
	FilesDeleted int
	FilesFailed  int
}

// MemeService 上传流程与表情包的读写操作
type MemeService struct {
	cfg       *config.Config
	processor *ImageProcessor
	store     FileStore
	registrar Registrar
	memes     *repository.MemeRepository
	social    *repository.SocialRepository
	cache     *RedisService
}

func NewMemeService(
	cfg *config.Config,
	processor *ImageProcessor,
	store FileStore,
	registrar Registrar,
	memes *repository.MemeRepository,
	social *repository.SocialRepository,
	cache *RedisService,
) *MemeService {
	if registrar == nil {
		registrar = DisabledRegistrar{}
	}
	return &MemeService{
		cfg:       cfg,
		processor: processor,
		store:     store,
		registrar: registrar,
		memes:     memes,
		social:    social,
		cache:     cache,
	}
}

// Processor 暴露图片处理器给只做哈希/水印的接口
func (s *MemeService) Processor() *ImageProcessor {
	return s.processor
}

// Upload 处理 -> 查重 -> 存储原图与水印图 -> 入库 -> 链上注册
//
// 存储或入库失败时整体失败并清理已保存的文件；链上注册失败只记录日志。
func (s *MemeService) Upload(ctx context.Context, in UploadInput) (*model.UploadResult, error) {
	form := in.Form
	form.Title = strings.TrimSpace(form.Title)
	if form.Title == "" {
		return nil, validationError("upload", "title is required")
	}
	if !form.License.Valid() {
		return nil, validationError("upload", "unsupported license %q", form.License)
	}
	if strings.TrimSpace(form.CreatorName) == "" {
		form.CreatorName = defaultCreatorName
	}

	utils.Logger.Info("processing meme upload",
		zap.String("filename", in.Filename),
		zap.Int("size", len(in.Data)),
		zap.String("title", form.Title),
		zap.String("license", string(form.License)))

	processed, err := s.processor.Process(ctx, in.Data, in.ContentType)
	if err != nil {
		return nil, err
	}

	existing, err := s.memes.GetByMD5(ctx, processed.MD5)
	switch {
	case err != nil:
		utils.Logger.Warn("failed to look up identical content",
			zap.String("md5", processed.MD5), zap.Error(err))
	case existing != nil:
		utils.Logger.Info("identical content already stored",
			zap.String("md5", processed.MD5), zap.String("existing_id", existing.ID))
	}

	duplicates, err := s.findDuplicates(ctx, processed.Hash)
	if err != nil {
		return nil, err
	}

	meme := &model.Meme{
		ID:             utils.GenerateID(),
		Title:          form.Title,
		Description:    form.Description,
		License:        form.License,
		CreatorName:    form.CreatorName,
		CreatorAddress: strings.ToLower(form.CreatorAddress),
		Hash:           processed.Hash,
		MD5:            processed.MD5,
		InMarketplace:  form.InMarketplace,
		CreatedAt:      time.Now().UTC(),
	}

	original, watermarked, err := s.storeImages(ctx, meme, in, processed)
	if err != nil {
		return nil, err
	}
	meme.ImageURL = displayURL(original)
	meme.WatermarkedImageURL = displayURL(watermarked)
	meme.IPFSHash = original.CID

	if err := s.memes.Create(ctx, meme); err != nil {
		s.discard(ctx, original, watermarked)
		return nil, newError(KindStorage, "upload", err)
	}

	result := &model.UploadResult{Meme: meme, Duplicates: duplicates}

	register := form.RegisterOnChain == nil || *form.RegisterOnChain
	if register && s.registrar.Enabled() {
		s.register(ctx, meme, original)
		if meme.OnChain {
			result.Explorer = s.cfg.Story.ExplorerURL + meme.IPID
		}
	} else {
		utils.Logger.Info("skipping blockchain registration", zap.String("meme_id", meme.ID))
	}

	utils.Logger.Info("meme upload complete",
		zap.String("meme_id", meme.ID),
		zap.String("hash", meme.Hash),
		zap.Int("duplicates", len(duplicates)),
		zap.Bool("on_chain", meme.OnChain))
	return result, nil
}

func (s *MemeService) findDuplicates(ctx context.Context, hash string) ([]model.DuplicateCandidate, error) {
	entries, err := s.memes.ListHashes(ctx)
	if err != nil {
		return nil, newError(KindStorage, "find duplicates", err)
	}
	dups := FindDuplicates(hash, entries, s.cfg.Image.DuplicateThreshold)
	for _, d := range dups {
		utils.Logger.Warn("possible duplicate meme",
			zap.String("hash", hash),
			zap.String("existing_id", d.ID),
			zap.String("existing_title", d.Title),
			zap.Float64("similarity", d.Similarity))
	}
	return dups, nil
}

// storeImages 并发保存原图与水印图，任一失败则删除另一份
func (s *MemeService) storeImages(ctx context.Context, meme *model.Meme, in UploadInput, p *ProcessedImage) (*StoredFile, *StoredFile, error) {
	meta := map[string]string{
		"title":   meme.Title,
		"creator": meme.CreatorName,
		"license": string(meme.License),
		"hash":    meme.Hash,
	}
	base := strings.TrimSuffix(filepath.Base(in.Filename), filepath.Ext(in.Filename))
	if base == "" || base == "." {
		base = meme.ID
	}

	var original, watermarked *StoredFile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		original, err = s.store.Save(gctx, StoreObject{
			Subfolder:   SubfolderOriginals,
			Filename:    filepath.Base(in.Filename),
			ContentType: in.ContentType,
			Data:        p.Original,
			Meta:        meta,
		})
		return err
	})
	g.Go(func() error {
		var err error
		watermarked, err = s.store.Save(gctx, StoreObject{
			Subfolder:   SubfolderWatermarked,
			Filename:    base + "-watermarked.png",
			ContentType: "image/png",
			Data:        p.Watermarked,
			Meta:        meta,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		s.discard(context.WithoutCancel(ctx), original, watermarked)
		if KindOf(err) == KindUnknown {
			err = newError(KindStorage, "store images", err)
		}
		return nil, nil, err
	}
	return original, watermarked, nil
}

func (s *MemeService) discard(ctx context.Context, files ...*StoredFile) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if err := s.store.Delete(ctx, f.URL); err != nil {
			utils.Logger.Warn("failed to discard stored file", zap.String("url", f.URL), zap.Error(err))
		}
	}
}

func (s *MemeService) register(ctx context.Context, meme *model.Meme, original *StoredFile) {
	imageURL := original.GatewayURL
	if imageURL == "" {
		imageURL = s.absoluteURL(original.URL)
	}
	req, err := NewRegistrationRequest(meme, imageURL)
	if err != nil {
		utils.Logger.Warn("failed to build registration request", zap.Error(err))
		return
	}
	// IPFS 后端把 NFT 元数据也固定到 IPFS，失败时保留 data URI
	if pinner, ok := s.store.(metadataPinner); ok {
		res, err := pinner.PinJSON(ctx, meme.ID+"-metadata.json", NFTMetadata(meme, imageURL))
		if err != nil {
			utils.Logger.Warn("failed to pin nft metadata", zap.String("meme_id", meme.ID), zap.Error(err))
		} else {
			req.NFTMetadataURI = "ipfs://" + res.IpfsHash
		}
	}

	reg, err := s.registrar.Register(ctx, req)
	if err != nil {
		utils.Logger.Warn("blockchain registration failed",
			zap.String("meme_id", meme.ID), zap.Error(err))
		return
	}
	if err := s.memes.SetRegistration(ctx, meme.ID, reg.IPID, reg.TxHash, reg.LicenseTermsID); err != nil {
		utils.Logger.Error("failed to save registration",
			zap.String("meme_id", meme.ID), zap.String("ip_id", reg.IPID), zap.Error(err))
		return
	}
	meme.IPID, meme.TxHash, meme.LicenseTermsID, meme.OnChain = reg.IPID, reg.TxHash, reg.LicenseTermsID, true
}

func (s *MemeService) absoluteURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return strings.TrimRight(s.cfg.Upload.PublicBaseURL, "/") + u
}

func displayURL(f *StoredFile) string {
	if f.GatewayURL != "" {
		return f.GatewayURL
	}
	return f.URL
}

// Get 读取单条记录及其引用链接，优先读缓存
func (s *MemeService) Get(ctx context.Context, id string) (*model.Meme, error) {
	if !utils.IsValidID(id) {
		return nil, newError(KindNotFound, "get meme", fmt.Errorf("meme %s not found", id))
	}
	if s.cache != nil {
		cached, err := s.cache.GetMeme(ctx, id)
		if err != nil {
			utils.Logger.Warn("failed to get meme cache", zap.Error(err))
		}
		if cached != nil {
			return cached, nil
		}
	}

	meme, err := s.memes.GetByID(ctx, id)
	if err != nil {
		return nil, newError(KindStorage, "get meme", err)
	}
	if meme == nil {
		return nil, newError(KindNotFound, "get meme", fmt.Errorf("meme %s not found", id))
	}
	links, err := s.social.ListLinks(ctx, id)
	if err != nil {
		return nil, newError(KindStorage, "get meme", err)
	}
	meme.UsageLinks = links

	if s.cache != nil {
		if err := s.cache.SetMeme(ctx, meme); err != nil {
			utils.Logger.Warn("failed to set meme cache", zap.Error(err))
		}
	}
	return meme, nil
}

// List 浏览页列表
func (s *MemeService) List(ctx context.Context, q model.ListQuery) ([]*model.Meme, int, error) {
	switch q.Sort {
	case "", model.SortNewest, model.SortLikes, model.SortRating:
	default:
		return nil, 0, validationError("list memes", "unknown sort %q", q.Sort)
	}
	memes, total, err := s.memes.List(ctx, q)
	if err != nil {
		return nil, 0, newError(KindStorage, "list memes", err)
	}
	return memes, total, nil
}

// Count 已入库的表情包数量
func (s *MemeService) Count(ctx context.Context) (int64, error) {
	n, err := s.memes.Count(ctx)
	if err != nil {
		return 0, newError(KindStorage, "count memes", err)
	}
	return n, nil
}

// Update 修改标题、描述、授权与上架状态
func (s *MemeService) Update(ctx context.Context, id string, req model.UpdateMemeRequest) (*model.Meme, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, validationError("update meme", "title cannot be empty")
	}
	if req.License != nil && !req.License.Valid() {
		return nil, validationError("update meme", "unsupported license %q", *req.License)
	}
	meme, err := s.memes.Update(ctx, id, req)
	if err != nil {
		return nil, s.repoError("update meme", err)
	}
	s.invalidate(ctx, id)
	return meme, nil
}

// Delete 删除记录及其存储的文件
func (s *MemeService) Delete(ctx context.Context, id string) error {
	if !utils.IsValidID(id) {
		return newError(KindNotFound, "delete meme", fmt.Errorf("meme %s not found", id))
	}
	meme, err := s.memes.GetByID(ctx, id)
	if err != nil {
		return newError(KindStorage, "delete meme", err)
	}
	if meme == nil {
		return newError(KindNotFound, "delete meme", fmt.Errorf("meme %s not found", id))
	}
	if err := s.memes.Delete(ctx, id); err != nil {
		return s.repoError("delete meme", err)
	}
	s.invalidate(ctx, id)
	s.deleteFiles(ctx, meme)
	return nil
}

func (s *MemeService) deleteFiles(ctx context.Context, meme *model.Meme) (deleted, failed int) {
	for _, u := range storedURLs(meme) {
		if err := s.store.Delete(ctx, u); err != nil {
			failed++
			utils.Logger.Warn("failed to delete file", zap.String("url", u), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, failed
}

// storedURLs 把展示地址还原为存储后端认识的地址
func storedURLs(meme *model.Meme) []string {
	var out []string
	for _, u := range []string{meme.ImageURL, meme.WatermarkedImageURL} {
		if u == "" {
			continue
		}
		if i := strings.Index(u, "/ipfs/"); i >= 0 && !strings.HasPrefix(u, "/uploads/") {
			u = "ipfs://" + u[i+len("/ipfs/"):]
		}
		out = append(out, u)
	}
	return out
}

func (s *MemeService) ToggleLike(ctx context.Context, memeID, userID string) (*model.LikeStatus, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("like", "user id (wallet address) required")
	}
	status, err := s.social.ToggleLike(ctx, memeID, strings.ToLower(userID))
	if err != nil {
		return nil, s.repoError("like", err)
	}
	s.invalidate(ctx, memeID)
	return status, nil
}

func (s *MemeService) LikeStatus(ctx context.Context, memeID, userID string) (*model.LikeStatus, error) {
	status, err := s.social.LikeStatus(ctx, memeID, strings.ToLower(userID))
	if err != nil {
		return nil, s.repoError("like status", err)
	}
	return status, nil
}

func (s *MemeService) Rate(ctx context.Context, memeID, userID string, value int) (*model.RatingStatus, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("rate", "user id and rating value required")
	}
	if value < 1 || value > 5 {
		return nil, validationError("rate", "rating must be between 1 and 5")
	}
	status, err := s.social.Rate(ctx, memeID, strings.ToLower(userID), value)
	if err != nil {
		return nil, s.repoError("rate", err)
	}
	s.invalidate(ctx, memeID)
	return status, nil
}

func (s *MemeService) RatingStatus(ctx context.Context, memeID, userID string) (*model.RatingStatus, error) {
	status, err := s.social.RatingStatus(ctx, memeID, strings.ToLower(userID))
	if err != nil {
		return nil, s.repoError("rating status", err)
	}
	return status, nil
}

func (s *MemeService) Meta(ctx context.Context, memeID, userID string) (*model.MemeMeta, error) {
	meta, err := s.social.Meta(ctx, memeID, strings.ToLower(userID))
	if err != nil {
		return nil, s.repoError("meta", err)
	}
	return meta, nil
}

// AddLink 只接受 http/https 地址
func (s *MemeService) AddLink(ctx context.Context, memeID, rawURL string) (*model.UsageLink, error) {
	u, err := url.ParseRequestURI(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, validationError("add link", "invalid url %q", rawURL)
	}
	link, err := s.social.AddLink(ctx, memeID, u.String())
	if err != nil {
		return nil, s.repoError("add link", err)
	}
	s.invalidate(ctx, memeID)
	return link, nil
}

func (s *MemeService) ListLinks(ctx context.Context, memeID string) ([]model.UsageLink, error) {
	links, err := s.social.ListLinks(ctx, memeID)
	if err != nil {
		return nil, s.repoError("list links", err)
	}
	return links, nil
}

// Verify 仅管理员地址可修改认证状态
//
// adminAddress 由请求方自行填写，只是白名单比对，并不证明调用方持有该钱包。
// 对外开放前应改为校验钱包签名。
func (s *MemeService) Verify(ctx context.Context, memeID string, verified bool, adminAddress string) error {
	if adminAddress == "" {
		return validationError("verify", "admin address required")
	}
	if !s.cfg.IsAdmin(adminAddress) {
		return newError(KindUnauthorized, "verify", fmt.Errorf("%s is not an admin", adminAddress))
	}
	if err := s.memes.SetVerified(ctx, memeID, verified); err != nil {
		return s.repoError("verify", err)
	}
	s.invalidate(ctx, memeID)
	utils.Logger.Info("meme verification updated",
		zap.String("meme_id", memeID), zap.Bool("verified", verified), zap.String("admin", adminAddress))
	return nil
}

// CleanUnregistered 删除从未完成链上注册的表情包及其文件
func (s *MemeService) CleanUnregistered(ctx context.Context, dryRun bool) (*CleanupReport, error) {
	memes, err := s.memes.ListUnregistered(ctx)
	if err != nil {
		return nil, newError(KindStorage, "clean unregistered", err)
	}
	report := &CleanupReport{Memes: memes}
	if dryRun {
		return report, nil
	}

	for _, m := range memes {
		deleted, failed := s.deleteFiles(ctx, m)
		report.FilesDeleted += deleted
		report.FilesFailed += failed

		if err := s.memes.Delete(ctx, m.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return report, newError(KindStorage, "clean unregistered", err)
		}
		s.invalidate(ctx, m.ID)
		report.Deleted++
	}
	return report, nil
}

func (s *MemeService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateMeme(ctx, id); err != nil {
		utils.Logger.Warn("failed to invalidate meme cache", zap.String("meme_id", id), zap.Error(err))
	}
}

func (s *MemeService) repoError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(KindNotFound, op, fmt.Errorf("meme not found"))
	}
	return newError(KindStorage, op, err)
}
