package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_AddRemoveKeepsOrder(t *testing.T) {
	l := New("a", "b", "a", "", "c")
	require.Equal(t, []string{"a", "b", "c"}, l.IDs())

	l.Remove("b")
	l.Remove("missing")
	assert.Equal(t, []string{"a", "c"}, l.IDs())
	assert.True(t, l.Has("c"))
	assert.False(t, l.Has("b"))

	l.Add("b")
	assert.Equal(t, []string{"a", "c", "b"}, l.IDs())
	assert.Equal(t, 3, l.Len())
}

func TestLedger_NilIsEmpty(t *testing.T) {
	var l *Ledger
	assert.False(t, l.Has("x"))
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.IDs())
}

func TestClose_Closure(t *testing.T) {
	prev := New("1", "2", "3")
	failed := []string{"4", "2", "5"}
	cleared := []string{"1", "5"}

	next := Close(prev, failed, cleared)
	assert.Equal(t, []string{"2", "3", "4"}, next.IDs())
	// prev 不被修改
	assert.Equal(t, []string{"1", "2", "3"}, prev.IDs())
}

func TestClose_NilPrevious(t *testing.T) {
	next := Close(nil, []string{"42"}, nil)
	assert.Equal(t, []string{"42"}, next.IDs())
}

func TestClose_IDsCopyIsolated(t *testing.T) {
	l := New("a")
	ids := l.IDs()
	ids[0] = "z"
	assert.Equal(t, []string{"a"}, l.IDs())
}
