package resume

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	codes []string
	pos   int
}

func (s *sliceSource) Next() (string, bool) {
	if s.pos >= len(s.codes) {
		return "", false
	}
	code := s.codes[s.pos]
	s.pos++
	return code, true
}

func TestFilterIdentityOnEmptySet(t *testing.T) {
	t.Parallel()

	src := &sliceSource{codes: []string{"aaa", "aab", "aac"}}
	f := NewFilter(src, nil)
	require.Equal(t, []string{"aaa", "aab", "aac"}, f.NextBatch(10))
	require.Empty(t, f.NextBatch(10))
}

func TestFilterSkipsSettledPreservingOrder(t *testing.T) {
	t.Parallel()

	src := &sliceSource{codes: []string{"aaa", "aab", "aac", "aad", "aae"}}
	settled := map[string]struct{}{
		"aab": {},
		"aad": {},
	}
	f := NewFilter(src, settled)
	require.Equal(t, []string{"aaa", "aac", "aae"}, f.NextBatch(10))
}

func TestNextBatchSizing(t *testing.T) {
	t.Parallel()

	src := &sliceSource{codes: []string{"a", "b", "c", "d", "e"}}
	f := NewFilter(src, nil)

	require.Equal(t, []string{"a", "b"}, f.NextBatch(2))
	require.Equal(t, []string{"c", "d"}, f.NextBatch(2))
	require.Equal(t, []string{"e"}, f.NextBatch(2))
	require.Empty(t, f.NextBatch(2))
	require.Nil(t, f.NextBatch(0))
}

func TestFilterAllSettledYieldsNothing(t *testing.T) {
	t.Parallel()

	src := &sliceSource{codes: []string{"x", "y"}}
	f := NewFilter(src, map[string]struct{}{"x": {}, "y": {}})
	_, ok := f.Next()
	require.False(t, ok)
}
