package infra

import (
	"context"

	"user-manager/usermanager/domain"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBAppStore guarda o app id em um banco LevelDB local.
type LevelDBAppStore struct {
	db *leveldb.DB
}

var _ domain.AppStore = (*LevelDBAppStore)(nil)

func OpenLevelDBAppStore(path string) (*LevelDBAppStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "leveldb app store: open %s", path)
	}
	return &LevelDBAppStore{db: db}, nil
}

func (s *LevelDBAppStore) LoadAppID(context.Context) (string, bool, error) {
	v, err := s.db.Get([]byte(appIDKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "leveldb app store: get")
	}
	return string(v), true, nil
}

func (s *LevelDBAppStore) StoreAppID(_ context.Context, appID string) error {
	return errors.Wrap(s.db.Put([]byte(appIDKey), []byte(appID), nil), "leveldb app store: put")
}

func (s *LevelDBAppStore) Clear(context.Context) error {
	return errors.Wrap(s.db.Delete([]byte(appIDKey), nil), "leveldb app store: delete")
}

func (s *LevelDBAppStore) Close() error {
	return s.db.Close()
}
