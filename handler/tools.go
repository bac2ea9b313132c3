package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/diyapandey-1623/meme-ip-vault/config"
	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/diyapandey-1623/meme-ip-vault/service"
	"github.com/gin-gonic/gin"
)

// ToolHandler 不落库的指纹、比较、水印与文生图接口
type ToolHandler struct {
	cfg       *config.Config
	processor *service.ImageProcessor
	generator *service.ImageGenerator
}

func NewToolHandler(cfg *config.Config, processor *service.ImageProcessor, generator *service.ImageGenerator) *ToolHandler {
	return &ToolHandler{cfg: cfg, processor: processor, generator: generator}
}

// Hash 计算上传图片的感知哈希
func (h *ToolHandler) Hash(c *gin.Context) {
	img, ok := readImage(c, h.cfg)
	if !ok {
		return
	}

	result, err := h.processor.Hash(c.Request.Context(), img.data)
	if err != nil {
		respondError(c, "failed to hash image", err)
		return
	}
	respondOK(c, "ok", model.HashResponse{
		Hash:   result.Hash,
		MD5:    result.MD5,
		Width:  result.Width,
		Height: result.Height,
	})
}

// Compare 比较两个指纹
func (h *ToolHandler) Compare(c *gin.Context) {
	var req model.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "hash1 and hash2 are required", err)
		return
	}

	similarity := service.CompareHashes(req.Hash1, req.Hash2)
	respondOK(c, "ok", model.CompareResponse{
		Similarity:  similarity,
		IsDuplicate: similarity > h.cfg.Image.DuplicateThreshold,
	})
}

// Watermark 返回加水印后的 PNG
func (h *ToolHandler) Watermark(c *gin.Context) {
	img, ok := readImage(c, h.cfg)
	if !ok {
		return
	}

	out, err := h.processor.Watermark(c.Request.Context(), img.data, c.PostForm("text"))
	if err != nil {
		respondError(c, "failed to watermark image", err)
		return
	}
	c.Data(http.StatusOK, "image/png", out)
}

// Generate 文生图，可选叠加上下文字
func (h *ToolHandler) Generate(c *gin.Context) {
	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "missing prompt", err)
		return
	}
	if !h.generator.Enabled() {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Success: false,
			Message: "image generation is not configured",
		})
		return
	}

	ctx := c.Request.Context()
	img, err := h.generator.Generate(ctx, req.Prompt)
	if err != nil {
		respondError(c, "failed to generate image", err)
		return
	}

	data, contentType := img.Data, img.ContentType
	if req.TopText != "" || req.BottomText != "" {
		data, err = h.processor.Caption(ctx, data, req.TopText, req.BottomText)
		if err != nil {
			respondError(c, "failed to add caption", err)
			return
		}
		contentType = "image/png"
	}

	hashed, err := h.processor.Hash(ctx, data)
	if err != nil {
		respondError(c, "failed to hash generated image", err)
		return
	}

	respondOK(c, "image generated", model.GenerateResponse{
		ImageURL: "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
		Hash:     hashed.Hash,
		Prompt:   img.Prompt,
		Model:    img.Model,
	})
}
