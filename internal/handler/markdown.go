package handler

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// 任务与成就的描述由目录文件维护，允许使用 Markdown
var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	descriptionSanitizer = bluemonday.UGCPolicy()
)

// renderDescription 将描述渲染为经过清洗的 HTML，渲染失败时返回空串
func renderDescription(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return ""
	}
	return strings.TrimSpace(string(descriptionSanitizer.SanitizeBytes(buf.Bytes())))
}
