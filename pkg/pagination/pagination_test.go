package pagination

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, 50, NormalizeLimit(50))
	assert.Equal(t, MaxLimit, NormalizeLimit(5000))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{TrackingVersion: 4821, ID: uuid.New()}
	encoded := EncodeCursor(in)
	assert.NotContains(t, encoded, "=")
	out, err := ParseCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, in, *out)

	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	for _, bad := range []string{
		"not-base64!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("-1:" + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte("12:not-a-uuid")),
	} {
		_, err = ParseCursor(bad)
		assert.Error(t, err, bad)
	}
}

func TestCollectFollowsCursor(t *testing.T) {
	pages := map[string]Connection[string]{
		"":   {Nodes: []string{"a", "b"}, PageInfo: PageInfo{HasNextPage: true, EndCursor: "c1"}},
		"c1": {Nodes: []string{"c"}, PageInfo: PageInfo{HasNextPage: true, EndCursor: "c2"}},
		"c2": {Nodes: []string{"d"}, PageInfo: PageInfo{HasNextPage: false, EndCursor: "c3"}},
	}
	var afters []string
	got, err := Collect(context.Background(), func(_ context.Context, after string) (Connection[string], error) {
		afters = append(afters, after)
		return pages[after], nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
	assert.Equal(t, []string{"", "c1", "c2"}, afters)
}

func TestCollectRejectsStuckCursor(t *testing.T) {
	calls := 0
	_, err := Collect(context.Background(), func(_ context.Context, after string) (Connection[int], error) {
		calls++
		return Connection[int]{Nodes: []int{calls}, PageInfo: PageInfo{HasNextPage: true, EndCursor: "same"}}, nil
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.Equal(t, 2, calls)

	_, err = Collect(context.Background(), func(_ context.Context, after string) (Connection[int], error) {
		return Connection[int]{PageInfo: PageInfo{HasNextPage: true}}, nil
	})
	require.Error(t, err)
}

func TestCollectPropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Collect(context.Background(), func(_ context.Context, after string) (Connection[int], error) {
		return Connection[int]{}, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Chunk(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Chunk(items, 100))
	assert.Empty(t, Chunk([]int{}, 3))
}
