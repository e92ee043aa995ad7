package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURL data URL 格式不正确
var ErrInvalidDataURL = errors.New("invalid data URL")

// IsImageMediaType 判断媒体类型是否属于 image 大类（不区分大小写）
func IsImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

// BuildDataURL 将原始字节编码为 data:<mime>;base64,<payload>
func BuildDataURL(mimeType string, data []byte) string {
	return WrapBase64(mimeType, base64.StdEncoding.EncodeToString(data))
}

// WrapBase64 将已编码的 base64 文本包装为 data URL
func WrapBase64(mimeType, payload string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, payload)
}

// ParseDataURL 拆分 data URL:
// mimeType 取 ':' 与第一个 ';' 之间的部分，payload 取第一个 ',' 之后的部分
func ParseDataURL(dataURL string) (mimeType string, payload string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURL)
	}

	comma := strings.Index(dataURL, ",")
	if comma < 0 {
		return "", "", fmt.Errorf("%w: missing payload separator", ErrInvalidDataURL)
	}

	header := dataURL[len("data:"):comma]
	semi := strings.Index(header, ";")
	if semi < 0 {
		return "", "", fmt.Errorf("%w: missing parameter separator", ErrInvalidDataURL)
	}

	return header[:semi], dataURL[comma+1:], nil
}

// GetExtensionFromMimeType 根据 MIME 类型获取文件扩展名（不区分大小写）
func GetExtensionFromMimeType(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}

// TruncateForLog 截断长字符串用于日志，避免打印过长内容（如 base64）
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
