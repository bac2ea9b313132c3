package model

// UploadRequest 上传表单字段
type UploadRequest struct {
	Title           string  `form:"title" binding:"required"`
	Description     string  `form:"description"`
	License         License `form:"license" binding:"required"`
	CreatorName     string  `form:"creatorName"`
	CreatorAddress  string  `form:"creatorAddress"`
	RegisterOnChain *bool   `form:"registerOnChain"`
	InMarketplace   bool    `form:"inMarketplace"`
}

// UpdateMemeRequest 可修改的字段，nil 表示不变
type UpdateMemeRequest struct {
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	License       *License `json:"license"`
	InMarketplace *bool    `json:"inMarketplace"`
}

type LikeRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type RateRequest struct {
	UserID string `json:"userId" binding:"required"`
	Value  int    `json:"value" binding:"required"`
}

type LinkRequest struct {
	URL string `json:"url" binding:"required"`
}

type VerifyRequest struct {
	Verified     bool   `json:"verified"`
	AdminAddress string `json:"adminAddress"`
}

type CompareRequest struct {
	Hash1 string `json:"hash1" binding:"required"`
	Hash2 string `json:"hash2" binding:"required"`
}

// GenerateRequest 文生图请求，TopText/BottomText 非空时叠加表情包文字
type GenerateRequest struct {
	Prompt     string `json:"prompt" binding:"required"`
	TopText    string `json:"topText"`
	BottomText string `json:"bottomText"`
}

// UploadResult 上传结果
type UploadResult struct {
	Meme       *Meme                `json:"meme"`
	Duplicates []DuplicateCandidate `json:"duplicates,omitempty"`
	Explorer   string               `json:"explorerUrl,omitempty"`
}

// UploadResponse 上传响应
type UploadResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Warning string        `json:"warning,omitempty"`
	Data    *UploadResult `json:"data,omitempty"`
}

// ListResponse 列表响应
type ListResponse struct {
	Memes  []*Meme `json:"memes"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// DataResponse 通用成功响应
type DataResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// HashResponse /hash 响应数据
type HashResponse struct {
	Hash   string `json:"hash"`
	MD5    string `json:"md5"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// CompareResponse /compare 响应数据
type CompareResponse struct {
	Similarity  float64 `json:"similarity"`
	IsDuplicate bool    `json:"isDuplicate"`
}

// GenerateResponse 生成图片以 data URI 返回，可直接作为上传的 image
type GenerateResponse struct {
	ImageURL string `json:"imageUrl"`
	Hash     string `json:"hash"`
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
}
