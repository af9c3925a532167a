package patterns

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Store holds the live library. Readers take a snapshot with Current and
// never see a half-loaded library.
type Store struct {
	path    string
	current atomic.Pointer[Library]
}

// NewStore loads path, or the embedded default when path is empty.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	lib := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		lib = loaded
	}
	s.current.Store(lib)
	return s, nil
}

// NewStaticStore wraps an already compiled library.
func NewStaticStore(lib *Library) *Store {
	s := &Store{}
	s.current.Store(lib)
	return s
}

func (s *Store) Current() *Library {
	return s.current.Load()
}

// Reload re-reads the backing file. On error the previous library stays live.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	lib, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.current.Store(lib)
	return nil
}

// Watch reloads the library whenever its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file by
// rename are picked up.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create pattern watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch pattern dir: %w", err)
	}
	target := filepath.Clean(s.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := s.Reload(); err != nil {
					log.Printf("patterns reload failed path=%s err=%v (keeping version=%d)", s.path, err, s.Current().Version)
					continue
				}
				log.Printf("patterns reloaded path=%s version=%d patterns=%d", s.path, s.Current().Version, s.Current().Size())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("patterns watcher error: %v", err)
			}
		}
	}()
	return nil
}
