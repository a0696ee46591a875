package attachments

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

// Handle 是一份已保存附件的元数据。
type Handle struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	SavedAt  time.Time `json:"savedAt"`
}

// Store 是附件的文件系统存储。文件按 ID 前两位散列到
// 子目录，原始文件名只保留在元数据里。
type Store struct {
	root    string
	maxSize int64
	log     *zap.Logger
}

// NewStore 创建附件存储，确保根目录存在。
func NewStore(root string, maxSize int64, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create attachment root: %w", err)
	}
	return &Store{root: root, maxSize: maxSize, log: log}, nil
}

// Save 保存一个附件流，返回句柄。超过大小上限返回校验错误。
func (s *Store) Save(r io.Reader, filename string) (*Handle, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, id[:2])
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}

	path := filepath.Join(dir, id)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create attachment file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write attachment: %w", err)
	}
	if written > s.maxSize {
		os.Remove(path)
		return nil, fmt.Errorf("attachment exceeds %d bytes: %w", s.maxSize, domain.ErrValidation)
	}

	handle := &Handle{
		ID:       id,
		Filename: sanitizeFilename(filename),
		Size:     written,
		SavedAt:  time.Now().UTC(),
	}
	s.log.Debug("attachment saved",
		zap.String("id", id),
		zap.Int64("size", written))
	return handle, nil
}

// Open 打开附件内容。服务端在响应前重新确认文件仍然存在，
// 句柄存在而文件被清理时返回 ErrNotFound。
func (s *Store) Open(id string) (io.ReadCloser, int64, error) {
	path, err := s.resolve(id)
	if err != nil {
		return nil, 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("attachment %s: %w", id, domain.ErrNotFound)
		}
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Exists 检查附件文件是否仍然在磁盘上。
func (s *Store) Exists(id string) bool {
	path, err := s.resolve(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Delete 删除附件文件。
func (s *Store) Delete(id string) error {
	path, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// resolve 把 ID 映射为磁盘路径，拒绝目录穿越。
func (s *Store) resolve(id string) (string, error) {
	if len(id) < 2 || strings.ContainsAny(id, `/\.`) {
		return "", fmt.Errorf("invalid attachment id: %w", domain.ErrValidation)
	}
	return filepath.Join(s.root, id[:2], id), nil
}

// sanitizeFilename 去掉路径成分，只保留文件名本体。
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, `/`))
	if name == "." || name == "/" || name == "" {
		return "attachment"
	}
	return name
}
