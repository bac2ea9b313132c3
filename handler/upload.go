package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/diyapandey-1623/meme-ip-vault/service"
	"github.com/diyapandey-1623/meme-ip-vault/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MemeHandler struct {
	cfg         *config.Config
	memeService *service.MemeService
}

func NewMemeHandler(cfg *config.Config, memes *service.MemeService) *MemeHandler {
	return &MemeHandler{
		cfg:         cfg,
		memeService: memes,
	}
}

// uploadedImage 读取后的上传文件
type uploadedImage struct {
	data        []byte
	filename    string
	contentType string
}

// readImage 读取表单中的 image 字段并检查大小与类型
func readImage(c *gin.Context, cfg *config.Config) (*uploadedImage, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Warn("failed to get uploaded file", zap.Error(err))
		badRequest(c, "image file is required", err)
		return nil, false
	}

	// 验证文件大小
	if file.Size > cfg.Upload.MaxSize {
		badRequest(c, fmt.Sprintf("image size must be less than %d MB", cfg.Upload.MaxSize/(1024*1024)), nil)
		return nil, false
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !isAllowedType(cfg, contentType) {
		badRequest(c, "unsupported file type "+contentType, nil)
		return nil, false
	}

	data, err := readFile(file)
	if err != nil {
		utils.Logger.Error("failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "failed to read uploaded file",
			Error:   err.Error(),
		})
		return nil, false
	}

	return &uploadedImage{data: data, filename: file.Filename, contentType: contentType}, true
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func isAllowedType(cfg *config.Config, contentType string) bool {
	if len(cfg.Upload.AllowedTypes) == 0 {
		return strings.HasPrefix(strings.ToLower(contentType), "image/")
	}
	for _, allowed := range cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// Upload 处理表情包上传
func (h *MemeHandler) Upload(c *gin.Context) {
	var form model.UploadRequest
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, "title and license are required", err)
		return
	}

	img, ok := readImage(c, h.cfg)
	if !ok {
		return
	}

	result, err := h.memeService.Upload(c.Request.Context(), service.UploadInput{
		Data:        img.data,
		Filename:    img.filename,
		ContentType: img.contentType,
		Form:        form,
	})
	if err != nil {
		respondError(c, "failed to upload meme", err)
		return
	}

	resp := model.UploadResponse{
		Success: true,
		Message: "meme uploaded",
		Data:    result,
	}
	if n := len(result.Duplicates); n > 0 {
		resp.Warning = fmt.Sprintf("possible duplicate: %d similar meme(s) already exist, top match %q (%.1f%%)",
			n, result.Duplicates[0].Title, result.Duplicates[0].Similarity)
	}
	c.JSON(http.StatusCreated, resp)
}
