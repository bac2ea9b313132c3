package handler

import (
	"net/http"
	"strconv"

	"github.com/diyapandey-1623/meme-ip-vault/model"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// listQuery 解析 sort/q/limit/offset
func listQuery(c *gin.Context) (model.ListQuery, error) {
	q := model.ListQuery{
		Sort:   c.DefaultQuery("sort", model.SortNewest),
		Search: c.Query("q"),
		Limit:  defaultPageSize,
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, errInvalidParam("limit")
		}
		q.Limit = min(n, maxPageSize)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, errInvalidParam("offset")
		}
		q.Offset = n
	}
	return q, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid query parameter " + string(e) }

// List 浏览全部表情包
func (h *MemeHandler) List(c *gin.Context) {
	h.list(c, false)
}

// Marketplace 只列出上架的表情包
func (h *MemeHandler) Marketplace(c *gin.Context) {
	h.list(c, true)
}

func (h *MemeHandler) list(c *gin.Context, marketplace bool) {
	q, err := listQuery(c)
	if err != nil {
		badRequest(c, err.Error(), nil)
		return
	}
	q.MarketplaceOnly = marketplace

	memes, total, err := h.memeService.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, "failed to list memes", err)
		return
	}
	c.JSON(http.StatusOK, model.ListResponse{
		Memes:  memes,
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

// Get 获取单个表情包及其引用链接
func (h *MemeHandler) Get(c *gin.Context) {
	meme, err := h.memeService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "failed to get meme", err)
		return
	}
	respondOK(c, "ok", meme)
}

func (h *MemeHandler) Update(c *gin.Context) {
	var req model.UpdateMemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	meme, err := h.memeService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "failed to update meme", err)
		return
	}
	respondOK(c, "meme updated", meme)
}

func (h *MemeHandler) Delete(c *gin.Context) {
	if err := h.memeService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "failed to delete meme", err)
		return
	}
	respondOK(c, "meme deleted", nil)
}
