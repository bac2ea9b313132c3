package model

import "time"

// License 授权类型
type License string

const (
	LicenseFree         License = "Free to Use"
	LicenseCredit       License = "Credit Required"
	LicenseNoCommercial License = "No Commercial"
)

// Valid 判断授权类型是否受支持
func (l License) Valid() bool {
	switch l {
	case LicenseFree, LicenseCredit, LicenseNoCommercial:
		return true
	}
	return false
}

// Meme 已入库的表情包记录
type Meme struct {
	ID                  string      `json:"id"`
	Title               string      `json:"title"`
	Description         string      `json:"description"`
	License             License     `json:"license"`
	CreatorName         string      `json:"creatorName"`
	CreatorAddress      string      `json:"creatorAddress,omitempty"`
	ImageURL            string      `json:"imageUrl"`
	WatermarkedImageURL string      `json:"watermarkedImageUrl"`
	IPFSHash            string      `json:"ipfsHash,omitempty"`
	Hash                string      `json:"hash"`
	MD5                 string      `json:"md5"`
	IPID                string      `json:"ipId,omitempty"`
	TxHash              string      `json:"txHash,omitempty"`
	LicenseTermsID      string      `json:"licenseTermsId,omitempty"`
	OnChain             bool        `json:"onChain"`
	InMarketplace       bool        `json:"inMarketplace"`
	Verified            bool        `json:"verified"`
	LikesCount          int         `json:"likesCount"`
	RatingSum           int         `json:"ratingSum"`
	RatingCount         int         `json:"ratingCount"`
	AverageRating       float64     `json:"averageRating"`
	CreatedAt           time.Time   `json:"timestamp"`
	UsageLinks          []UsageLink `json:"usageLinks,omitempty"`
}

// UsageLink 表情包被引用的外部链接
type UsageLink struct {
	ID      string    `json:"id"`
	URL     string    `json:"url"`
	MemeID  string    `json:"memeId"`
	AddedAt time.Time `json:"addedAt"`
}

// HashEntry 查重时与新上传图片比较的已有指纹
type HashEntry struct {
	ID    string `json:"id"`
	Hash  string `json:"hash"`
	Title string `json:"title"`
}

// DuplicateCandidate 相似度超过阈值的已有表情包
type DuplicateCandidate struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// HashResult 图片指纹，按内容MD5缓存
type HashResult struct {
	MD5    string `json:"md5"`
	Hash   string `json:"hash"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// MemeMeta 点赞与评分汇总
type MemeMeta struct {
	LikesCount    int     `json:"likesCount"`
	AverageRating float64 `json:"averageRating"`
	RatingCount   int     `json:"ratingCount"`
	Verified      bool    `json:"verified"`
	UserLike      bool    `json:"userLike"`
	UserRating    *int    `json:"userRating"`
}

// LikeStatus 点赞状态
type LikeStatus struct {
	LikesCount int  `json:"likesCount"`
	Liked      bool `json:"liked"`
}

// RatingStatus 评分状态
type RatingStatus struct {
	AverageRating float64 `json:"averageRating"`
	RatingCount   int     `json:"ratingCount"`
	UserRating    *int    `json:"userRating"`
}

// ListQuery 列表查询条件
type ListQuery struct {
	Sort            string
	Search          string
	MarketplaceOnly bool
	Limit           int
	Offset          int
}

const (
	SortNewest = "newest"
	SortLikes  = "likes"
	SortRating = "rating"
)
