package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNew_WritesDailyFile(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	root := t.TempDir()
	l, err := New(root, false, "debug")
	require.NoError(t, err)
	l.Infow("hello", "k", "v")
	l.Debugw("verbose")
	_ = l.Sync()

	name := filepath.Join(root, "logs", time.Now().Format("2006-01-02")+".log")
	raw, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello"`)
	assert.Contains(t, string(raw), `"msg":"verbose"`)
	assert.Contains(t, string(raw), `"min_level":"debug"`)
}

func TestFromContext(t *testing.T) {
	l := zaptest.NewLogger(t).Sugar()

	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))

	// No logger attached falls back to the global one.
	assert.Same(t, zap.S(), FromContext(context.Background()))
}
