package service

import (
	"encoding/hex"
	"math/bits"
	"sort"

	"github.com/diyapandey-1623/meme-ip-vault/model"
)

// CompareHashes 返回两个指纹的相似度百分比 [0, 100]
//
// 长度不同直接返回 0。两者都是合法十六进制时按位比较（汉明距离），
// 否则退化为逐字符比较，兼容历史数据中的非十六进制指纹。
func CompareHashes(hash1, hash2 string) float64 {
	if len(hash1) != len(hash2) || len(hash1) == 0 {
		return 0
	}

	a, errA := decodeHexHash(hash1)
	b, errB := decodeHexHash(hash2)
	if errA != nil || errB != nil {
		return compareChars(hash1, hash2)
	}

	total := len(hash1) * 4
	diff := 0
	for i := range a {
		diff += bits.OnesCount8(a[i] ^ b[i])
	}
	return float64(total-diff) / float64(total) * 100
}

// decodeHexHash 解析十六进制指纹，奇数长度的按半字节补齐
func decodeHexHash(h string) ([]byte, error) {
	if len(h)%2 == 1 {
		h += "0"
	}
	return hex.DecodeString(h)
}

func compareChars(hash1, hash2 string) float64 {
	matches := 0
	for i := 0; i < len(hash1); i++ {
		if hash1[i] == hash2[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(hash1)) * 100
}

// FindDuplicates 返回相似度严格大于阈值的已有条目，按相似度降序
func FindDuplicates(hash string, entries []model.HashEntry, threshold float64) []model.DuplicateCandidate {
	var out []model.DuplicateCandidate
	for _, e := range entries {
		sim := CompareHashes(hash, e.Hash)
		if sim > threshold {
			out = append(out, model.DuplicateCandidate{
				ID:         e.ID,
				Title:      e.Title,
				Similarity: sim,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}
