package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitingApply_OnlyNonNilFields(t *testing.T) {
	b := WaitingBook{FanqieID: "1", CurrentChapters: Int(10), Status: String(StatusOngoing), LastUpdated: String("2024-01-01")}
	b.Apply(Partial{Chapters: Int(12)})

	assert.Equal(t, 12, Deref(b.CurrentChapters))
	assert.Equal(t, StatusOngoing, Deref(b.Status))
	assert.Equal(t, "2024-01-01", Deref(b.LastUpdated))

	b.Apply(Partial{})
	assert.Equal(t, 12, Deref(b.CurrentChapters))
	assert.NotNil(t, b.Status)
}

func TestApply_Idempotent(t *testing.T) {
	p := Partial{Chapters: Int(5), Status: String(StatusCompleted), LastUpdated: String("x")}
	a := UploadingBook{FanqieID: "1", UploadedChapters: 3}
	a.Apply(p)
	once := a
	a.Apply(p)
	assert.Equal(t, once, a)
}

func TestUploadingApply_NeverTouchesUploadedChapters(t *testing.T) {
	b := UploadingBook{FanqieID: "1", UploadedChapters: 3}
	b.Apply(Partial{Chapters: Int(40)})
	assert.Equal(t, 3, b.UploadedChapters)
	assert.Equal(t, 40, Deref(b.FanqieChapters))
}

func TestApply_CopiesValues(t *testing.T) {
	n := 7
	var b WaitingBook
	b.Apply(Partial{Chapters: &n})
	n = 8
	assert.Equal(t, 7, Deref(b.CurrentChapters))
}

func TestRemoved(t *testing.T) {
	b := UploadingBook{FanqieID: "1", FanqieChapters: Int(9), LastUpdated: String("y")}
	b.Apply(Removed())
	assert.True(t, Removed().IsRemoved())
	assert.Equal(t, StatusRemoved, Deref(b.Status))
	assert.Equal(t, 9, Deref(b.FanqieChapters))
	assert.Equal(t, "y", Deref(b.LastUpdated))
	assert.True(t, Partial{}.Empty())
	assert.False(t, Removed().Empty())
}

func TestNeedsTitle(t *testing.T) {
	assert.False(t, (&UploadingBook{}).NeedsTitle())
	assert.True(t, (&UploadingBook{WikiID: String("a")}).NeedsTitle())
	assert.True(t, (&UploadingBook{WikiID: String("a"), VITitle: String("")}).NeedsTitle())
	b := UploadingBook{WikiID: String("a")}
	b.ApplyWiki(WikiPartial{Title: String("T")})
	assert.False(t, b.NeedsTitle())
	b.ApplyWiki(WikiPartial{})
	assert.Equal(t, "T", Deref(b.VITitle))
}
