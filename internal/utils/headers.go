package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/RecoveryAshes/FlickrExtractor/internal/models"
)

// sensitiveKeywords 名称包含这些关键字的头部在日志中脱敏
var sensitiveKeywords = []string{
	"authorization",
	"cookie",
	"token",
	"key",
	"secret",
	"password",
	"credential",
}

// forbiddenHeaders 由浏览器或HTTP客户端自行管理的头部
var forbiddenHeaders = map[string]bool{
	"host":              true,
	"content-length":    true,
	"connection":        true,
	"transfer-encoding": true,
	"upgrade":           true,
	"te":                true,
}

var (
	headerNamePattern  = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+.^_|~-]+$`)
	headerValuePattern = regexp.MustCompile(`^[\t\x20-\x7e\x80-\xff]*$`)
)

const maxHeaderValueLength = 8192

// IsSensitiveHeader 按名称判断是否需要脱敏
func IsSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// RedactHeaderValue 保留前4个字符, 其余以***代替
func RedactHeaderValue(name, value string) string {
	if !IsSensitiveHeader(name) {
		return value
	}
	if len(value) <= 4 {
		return "***"
	}
	return value[:4] + "***"
}

// RedactHeaders 生成用于日志的头部描述, 按名称排序
func RedactHeaders(headers http.Header) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		values := headers[name]
		if len(values) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, RedactHeaderValue(name, values[0])))
	}
	return strings.Join(parts, ", ")
}

// ValidateHeader 校验单个头部
func ValidateHeader(name, value string) error {
	if name == "" {
		return &models.ValidationError{HeaderName: name, Reason: "头部名称不能为空"}
	}
	if forbiddenHeaders[strings.ToLower(name)] {
		return &models.ValidationError{HeaderName: name, Reason: "此头部由HTTP客户端自动管理,不允许自定义"}
	}
	if !headerNamePattern.MatchString(name) {
		return &models.ValidationError{HeaderName: name, Reason: "头部名称包含非法字符"}
	}
	if len(value) > maxHeaderValueLength {
		return &models.ValidationError{
			HeaderName: name,
			Reason:     fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), maxHeaderValueLength),
		}
	}
	if !headerValuePattern.MatchString(value) {
		return &models.ValidationError{HeaderName: name, Reason: "头部值包含控制字符"}
	}
	return nil
}

// ValidateHeaders 校验全部头部, 返回第一个错误
func ValidateHeaders(headers http.Header) error {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range headers[name] {
			if err := ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}
