package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"

	"github.com/gin-gonic/gin"
)

// 分页默认值
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// GenerateRandomString 生成 length 字节的随机串，以十六进制返回
func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// ParsePage 读取 current/size 查询参数，非法值回落到默认值
func ParsePage(c *gin.Context) (current, size int) {
	current, err := strconv.Atoi(c.DefaultQuery("current", "1"))
	if err != nil || current < 1 {
		current = 1
	}
	size, err = strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(DefaultPageSize)))
	if err != nil || size < 1 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return current, size
}
