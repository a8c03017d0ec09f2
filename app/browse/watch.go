package browse

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// fileChangedMsg delivers the file's content after a write on disk.
type fileChangedMsg struct {
	content string
}

type watchErrMsg struct {
	err error
}

// Watch reports writes to path as fileChangedMsg. The parent directory is
// watched so editors that replace the file on save are followed too.
func Watch(ctx context.Context, path string, send func(tea.Msg), logger *log.Logger) (io.Closer, error) {
	if logger == nil {
		logger = log.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				data, err := os.ReadFile(abs)
				if err != nil {
					logger.Printf("reload %s: %v", abs, err)
					send(watchErrMsg{err: err})
					continue
				}
				send(fileChangedMsg{content: string(data)})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				send(watchErrMsg{err: err})
			}
		}
	}()
	return watcher, nil
}
