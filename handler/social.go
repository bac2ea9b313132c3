package handler

import (
	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/gin-gonic/gin"
)

// Like 切换点赞
func (h *MemeHandler) Like(c *gin.Context) {
	var req model.LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "userId is required", err)
		return
	}
	status, err := h.memeService.ToggleLike(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		respondError(c, "failed to toggle like", err)
		return
	}
	respondOK(c, "ok", status)
}

// LikeStatus ?userId= 可选
func (h *MemeHandler) LikeStatus(c *gin.Context) {
	status, err := h.memeService.LikeStatus(c.Request.Context(), c.Param("id"), c.Query("userId"))
	if err != nil {
		respondError(c, "failed to get like status", err)
		return
	}
	respondOK(c, "ok", status)
}

func (h *MemeHandler) Rate(c *gin.Context) {
	var req model.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "userId and value are required", err)
		return
	}
	status, err := h.memeService.Rate(c.Request.Context(), c.Param("id"), req.UserID, req.Value)
	if err != nil {
		respondError(c, "failed to save rating", err)
		return
	}
	respondOK(c, "ok", status)
}

func (h *MemeHandler) RatingStatus(c *gin.Context) {
	status, err := h.memeService.RatingStatus(c.Request.Context(), c.Param("id"), c.Query("userId"))
	if err != nil {
		respondError(c, "failed to get rating", err)
		return
	}
	respondOK(c, "ok", status)
}

// Meta 点赞、评分与认证汇总
func (h *MemeHandler) Meta(c *gin.Context) {
	meta, err := h.memeService.Meta(c.Request.Context(), c.Param("id"), c.Query("userId"))
	if err != nil {
		respondError(c, "failed to get meme meta", err)
		return
	}
	respondOK(c, "ok", meta)
}

func (h *MemeHandler) AddLink(c *gin.Context) {
	var req model.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "url is required", err)
		return
	}
	link, err := h.memeService.AddLink(c.Request.Context(), c.Param("id"), req.URL)
	if err != nil {
		respondError(c, "failed to add usage link", err)
		return
	}
	respondOK(c, "usage link added", link)
}

func (h *MemeHandler) ListLinks(c *gin.Context) {
	links, err := h.memeService.ListLinks(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "failed to list usage links", err)
		return
	}
	respondOK(c, "ok", links)
}

// Verify 仅管理员
func (h *MemeHandler) Verify(c *gin.Context) {
	var req model.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	if err := h.memeService.Verify(c.Request.Context(), c.Param("id"), req.Verified, req.AdminAddress); err != nil {
		respondError(c, "failed to update verification", err)
		return
	}
	respondOK(c, "verification updated", gin.H{"verified": req.Verified})
}
