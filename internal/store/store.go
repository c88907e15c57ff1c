// 包 store 负责书单与重试台账的持久化：
// - 每个集合一个 JSON 文件（对象数组 / 字符串数组）
// - 文件不存在视为空集合（首次运行）
// - 保存时整体覆盖（临时文件 + rename），不做追加
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"fanqie-tracker/internal/ledger"
	"fanqie-tracker/internal/model"
)

var (
	// ErrDuplicateID 表示 fanqie_id 在集合内或两个集合间重复。
	ErrDuplicateID = errors.New("duplicate fanqie_id")
	// ErrLocked 表示另一个进程正在写状态目录。
	ErrLocked = errors.New("state directory is locked by another run")
)

const (
	WaitingFile   = "waiting_list.json"
	UploadingFile = "uploading_list.json"
	LedgerFile    = "retry_ledger.json"
	lockFile      = ".tracker.lock"
)

// Lists 为两个书单的内存快照。
type Lists struct {
	Waiting   []model.WaitingBook
	Uploading []model.UploadingBook
}

// Store 为基于目录的 JSON 存储。
type Store struct {
	dir  string
	lock *flock.Flock
}

// Open 返回指向 dir 的存储，目录不存在时创建。
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &Store{dir: dir, lock: flock.New(filepath.Join(dir, lockFile))}, nil
}

// Dir 返回状态目录。
func (s *Store) Dir() string { return s.dir }

// Lock 获取状态目录的排他锁，未获取到时返回 ErrLocked。
func (s *Store) Lock() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", s.lock.Path(), err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Unlock 释放排他锁。
func (s *Store) Unlock() error { return s.lock.Unlock() }

// LoadWaiting 读取等待书单，文件不存在时返回空书单。
func (s *Store) LoadWaiting() ([]model.WaitingBook, error) {
	out := []model.WaitingBook{}
	if err := s.read(WaitingFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadUploading 读取上传书单，文件不存在时返回空书单。
func (s *Store) LoadUploading() ([]model.UploadingBook, error) {
	out := []model.UploadingBook{}
	if err := s.read(UploadingFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadLedger 读取重试台账。
func (s *Store) LoadLedger() (*ledger.Ledger, error) {
	var ids []string
	if err := s.read(LedgerFile, &ids); err != nil {
		return nil, err
	}
	return ledger.New(ids...), nil
}

// SaveWaiting 整体覆盖写入等待书单。
func (s *Store) SaveWaiting(books []model.WaitingBook) error {
	if books == nil {
		books = []model.WaitingBook{}
	}
	return s.write(WaitingFile, books)
}

// SaveUploading 整体覆盖写入上传书单。
func (s *Store) SaveUploading(books []model.UploadingBook) error {
	if books == nil {
		books = []model.UploadingBook{}
	}
	return s.write(UploadingFile, books)
}

// SaveLedger 写入重试台账。
func (s *Store) SaveLedger(l *ledger.Ledger) error {
	return s.write(LedgerFile, l.IDs())
}

// Load 读取两个书单与台账，并校验 fanqie_id 唯一性。
func (s *Store) Load() (Lists, *ledger.Ledger, error) {
	w, err := s.LoadWaiting()
	if err != nil {
		return Lists{}, nil, err
	}
	u, err := s.LoadUploading()
	if err != nil {
		return Lists{}, nil, err
	}
	l, err := s.LoadLedger()
	if err != nil {
		return Lists{}, nil, err
	}
	lists := Lists{Waiting: w, Uploading: u}
	if err := Validate(lists); err != nil {
		return Lists{}, nil, err
	}
	return lists, l, nil
}

// Validate 检查 fanqie_id 非空、集合内唯一且不同时出现在两个集合中。
func Validate(lists Lists) error {
	waiting := make(map[string]struct{}, len(lists.Waiting))
	for i, b := range lists.Waiting {
		if b.FanqieID == "" {
			return fmt.Errorf("%s[%d]: empty fanqie_id", WaitingFile, i)
		}
		if _, ok := waiting[b.FanqieID]; ok {
			return fmt.Errorf("%s: %w %s", WaitingFile, ErrDuplicateID, b.FanqieID)
		}
		waiting[b.FanqieID] = struct{}{}
	}
	uploading := make(map[string]struct{}, len(lists.Uploading))
	for i, b := range lists.Uploading {
		if b.FanqieID == "" {
			return fmt.Errorf("%s[%d]: empty fanqie_id", UploadingFile, i)
		}
		if _, ok := uploading[b.FanqieID]; ok {
			return fmt.Errorf("%s: %w %s", UploadingFile, ErrDuplicateID, b.FanqieID)
		}
		if _, ok := waiting[b.FanqieID]; ok {
			return fmt.Errorf("%w %s present in both %s and %s", ErrDuplicateID, b.FanqieID, WaitingFile, UploadingFile)
		}
		uploading[b.FanqieID] = struct{}{}
	}
	return nil
}

func (s *Store) read(name string, v any) error {
	path := filepath.Join(s.dir, name)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// write 先写同目录临时文件再 rename，保证文件内容始终是完整快照。
func (s *Store) write(name string, v any) error {
	path := filepath.Join(s.dir, name)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
