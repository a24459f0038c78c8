package envfile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// =============================================================================
// 📄 引导文件编解码
// =============================================================================

// headerLines 导出文件固定的三行头部注释
var headerLines = [3]string{
	"# Environment Variables",
	"# Exported from Database at %s",
	"# DO NOT EDIT MANUALLY - Changes will be overwritten",
}

// quoteTriggers 值中出现任一字符即需双引号包裹
const quoteTriggers = " $#\"'"

// ErrInvalidValue 值无法按行写入引导文件
var ErrInvalidValue = errors.New("value must not contain line breaks")

// LineError 单行校验错误
type LineError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ValidationErrors 解析过程中收集的全部行错误
type ValidationErrors []LineError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "no validation errors"
	}
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return fmt.Sprintf("%d invalid line(s): %s", len(v), strings.Join(parts, "; "))
}

// Parse 解析 KEY=VALUE 文本。
// 空行与 # 注释行被忽略；缺少 '=' 或键为空的行记录为错误并跳过，解析继续。
// 返回的 ValidationErrors 为 nil 表示全部行合法。
func Parse(text string) (map[string]string, ValidationErrors) {
	values := make(map[string]string)
	var errs ValidationErrors

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			errs = append(errs, LineError{Line: lineNo, Message: "missing '=' separator"})
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			errs = append(errs, LineError{Line: lineNo, Message: "empty key"})
			continue
		}

		values[key] = unquote(strings.TrimLeftFunc(value, unicode.IsSpace))
	}

	return values, errs
}

// unquote 仅当两端均为同一引号时剥离最外层引号
func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// Serialize 输出固定头部注释，随后按键字典序升序逐行写出 KEY=VALUE。
// exportedAt 填入头部的导出时间行。
func Serialize(values map[string]string, exportedAt string) string {
	var b strings.Builder

	b.WriteString(headerLines[0])
	b.WriteByte('\n')
	b.WriteString(fmt.Sprintf(headerLines[1], exportedAt))
	b.WriteByte('\n')
	b.WriteString(headerLines[2])
	b.WriteString("\n\n")

	for _, key := range SortedKeys(values) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(quote(values[key]))
		b.WriteByte('\n')
	}

	return b.String()
}

// quote 值含任意空白字符或 $ # " ' 时整体包裹双引号，否则首尾空白会在解析时被去掉
func quote(value string) string {
	if strings.ContainsAny(value, quoteTriggers) || strings.ContainsFunc(value, unicode.IsSpace) {
		return `"` + value + `"`
	}
	return value
}

// CheckValue 拒绝含 \n 或 \r 的值，这类值无法在一行 KEY=VALUE 中原样还原
func CheckValue(value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return ErrInvalidValue
	}
	return nil
}

// SortedKeys 返回按字典序排序的键
func SortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidKey 判断键是否只包含字母、数字与下划线
func ValidKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
