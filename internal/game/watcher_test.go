package game

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Axidify/Terminality-V2-sub001/internal/catalog"
)

func TestContentWatcherDebouncesReloads(t *testing.T) {
	root := t.TempDir()
	var reloads atomic.Int32
	cw, err := NewContentWatcher(root, func() error {
		reloads.Add(1)
		return nil
	})
	require.NoError(t, err)
	cw.SetDebounce(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cw.Start(ctx))
	defer cw.Stop()

	dir := catalog.Dirs(root)[0]
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "relay.yaml"), []byte("id: relay\n"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, int32(1), reloads.Load(), "a burst of writes reloads once")
}
