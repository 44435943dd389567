package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStruct(t *testing.T) {
	type sample struct {
		Name  string
		Memo  *string
		Count int
	}

	memo := "  <b>note</b>  "
	s := &sample{Name: "  alice<script>  ", Memo: &memo, Count: 3}
	SanitizeStruct(s)

	assert.Equal(t, "alice&lt;script&gt;", s.Name)
	assert.Equal(t, "&lt;b&gt;note&lt;/b&gt;", *s.Memo)
	assert.Equal(t, 3, s.Count)
}

func TestSanitizeStruct_NonStructIsNoop(t *testing.T) {
	x := 42
	assert.NotPanics(t, func() {
		SanitizeStruct(&x)
		SanitizeStruct("plain string")
		SanitizeStruct(nil)
	})
}

func TestSafeStringRe(t *testing.T) {
	valid := []string{"alice", "addr-1", "dep_001", "ref.2026", "A1b2C3"}
	for _, s := range valid {
		assert.True(t, safeStringRe.MatchString(s), "expected %q to be safe", s)
	}

	invalid := []string{"", "a b", "x;drop", "héllo", "<tag>", "a/b"}
	for _, s := range invalid {
		assert.False(t, safeStringRe.MatchString(s), "expected %q to be rejected", s)
	}
}
