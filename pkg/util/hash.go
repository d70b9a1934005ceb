package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest 返回内容的 sha256 十六进制摘要，用于在日志和运行记录中标识配置包。
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortDigest 截取前 12 位。
func ShortDigest(data []byte) string {
	return Digest(data)[:12]
}
