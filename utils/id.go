package utils

import (
	"github.com/google/uuid"
)

// GenerateID 生成随机 UUID 作为记录主键与文件名
func GenerateID() string {
	return uuid.NewString()
}

// IsValidID 判断字符串是否为合法 UUID
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
