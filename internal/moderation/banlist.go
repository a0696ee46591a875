package moderation

import (
	"regexp"
	"sync"

	"go.uber.org/zap"

	"scribemarket/backend/internal/storage"
)

// BanList 是进程内的违禁词视图。
//
// 启动时从存储加载，管理端修改词表后调用 Reload 热更新；
// 请求处理期间只读。词表本身的增删由外部管理界面完成。
type BanList struct {
	mu       sync.RWMutex
	words    []string
	patterns []*regexp.Regexp
	repo     storage.BanListRepository
	log      *zap.Logger
}

// NewBanList 创建违禁词视图并做首次加载。
func NewBanList(repo storage.BanListRepository, log *zap.Logger) (*BanList, error) {
	bl := &BanList{repo: repo, log: log}
	if err := bl.Reload(); err != nil {
		return nil, err
	}
	return bl, nil
}

// Reload 重新从存储加载词表并编译整词匹配模式。
func (bl *BanList) Reload() error {
	words, err := bl.repo.ListBannedWords()
	if err != nil {
		return err
	}

	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		// 整词匹配，大小写不敏感
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			bl.log.Warn("skipping banned word with invalid pattern", zap.String("word", w))
			continue
		}
		patterns = append(patterns, re)
	}

	bl.mu.Lock()
	bl.words = words
	bl.patterns = patterns
	bl.mu.Unlock()

	bl.log.Info("banned word list loaded", zap.Int("count", len(words)))
	return nil
}

// Words 返回当前词表快照。
func (bl *BanList) Words() []string {
	bl.mu.RLock()
	defer bl.mu.RUnlock()

	out := make([]string, len(bl.words))
	copy(out, bl.words)
	return out
}

// Patterns 返回编译后的整词匹配模式快照。
func (bl *BanList) Patterns() []*regexp.Regexp {
	bl.mu.RLock()
	defer bl.mu.RUnlock()

	out := make([]*regexp.Regexp, len(bl.patterns))
	copy(out, bl.patterns)
	return out
}
