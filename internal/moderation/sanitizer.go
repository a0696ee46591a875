package moderation

import (
	"regexp"
	"strings"
)

// DefaultMaskToken 默认遮蔽标记。标记本身不含字母和数字，
// 因此重复消毒是幂等的。
const DefaultMaskToken = "****"

var (
	// 形如 555-123-4567、(555) 123 4567、+8613712345678 的号码
	phonePattern = regexp.MustCompile(`\+?\(?\d{2,4}\)?[\s.-]?\d{3,4}[\s.-]?\d{3,4}([\s.-]?\d{2,4})?`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	linkPattern  = regexp.MustCompile(`https?://[^\s<>"']+`)
)

// Sanitizer 对消息正文做发送时消毒：遮蔽违禁词、电话号码和邮箱。
//
// 无副作用，可安全地对同一文本重复调用。
type Sanitizer struct {
	banList *BanList
	mask    string
}

// NewSanitizer 创建消毒器。maskToken 为空时使用 DefaultMaskToken。
func NewSanitizer(banList *BanList, maskToken string) *Sanitizer {
	if maskToken == "" {
		maskToken = DefaultMaskToken
	}
	return &Sanitizer{banList: banList, mask: maskToken}
}

// Sanitize 返回消毒后的正文以及是否发生过替换。
//
// 任一替换（违禁词、号码、邮箱）都会置 flagged=true。
func (s *Sanitizer) Sanitize(text string) (string, bool) {
	flagged := false

	for _, pattern := range s.banList.Patterns() {
		if pattern.MatchString(text) {
			text = pattern.ReplaceAllString(text, s.mask)
			flagged = true
		}
	}

	if phonePattern.MatchString(text) {
		text = phonePattern.ReplaceAllString(text, s.mask)
		flagged = true
	}

	if emailPattern.MatchString(text) {
		text = emailPattern.ReplaceAllString(text, s.mask)
		flagged = true
	}

	return text, flagged
}

// ExtractFirstLink 返回正文中第一个合法 URL，不存在时返回空串。
func ExtractFirstLink(text string) string {
	return linkPattern.FindString(text)
}

// LinkDomain 取 URL 中 scheme 分隔符之后的首个路径段（即主机名）。
func LinkDomain(url string) string {
	idx := strings.Index(url, "://")
	if idx < 0 {
		return ""
	}
	rest := url[idx+3:]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}
