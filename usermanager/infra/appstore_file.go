package infra

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"user-manager/usermanager/domain"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const appIDKey = "app_id"

// FileAppStore persiste o app id em um arquivo YAML através de uma instância
// própria do viper (não interfere na configuração global).
type FileAppStore struct {
	mu   sync.Mutex
	path string
	v    *viper.Viper
}

var _ domain.AppStore = (*FileAppStore)(nil)

func NewFileAppStore(path string) (*FileAppStore, error) {
	if path == "" {
		return nil, errors.New("file app store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "file app store: create directory")
	}

	s := &FileAppStore{path: path}
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	s.v = v
	return s, nil
}

func (s *FileAppStore) read() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, errors.Wrapf(err, "file app store: read %s", s.path)
	}
	return v, nil
}

func (s *FileAppStore) LoadAppID(context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appID := s.v.GetString(appIDKey)
	return appID, appID != "", nil
}

func (s *FileAppStore) StoreAppID(_ context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(appIDKey, appID)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return errors.Wrapf(err, "file app store: write %s", s.path)
	}
	return nil
}

// Clear remove o arquivo inteiro.
func (s *FileAppStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "file app store: remove %s", s.path)
	}
	s.v = viper.New()
	s.v.SetConfigFile(s.path)
	s.v.SetConfigType("yaml")
	return nil
}

func (s *FileAppStore) Close() error { return nil }
