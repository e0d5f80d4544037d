package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"cloudvault-backend/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	n, err := m.Write(ctx, "a.txt", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 1, m.Len())

	rc, err := m.Open(ctx, "a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	_, err = m.Write(ctx, "a.txt", strings.NewReader("again"))
	assert.ErrorIs(t, err, common.ErrConflict)

	require.NoError(t, m.Delete(ctx, "a.txt"))
	require.NoError(t, m.Delete(ctx, "a.txt"))

	_, err = m.Open(ctx, "a.txt")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryStore_FailedWriteStoresNothing(t *testing.T) {
	m := NewMemoryStore()

	_, err := m.Write(context.Background(), "b.txt", &failingReader{data: []byte("xy"), err: errors.New("boom")})
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())
}
