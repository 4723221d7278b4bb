package board_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/truongminh/classboard/internal/board"
	"github.com/truongminh/classboard/internal/models"
)

func TestCollectionMapping(t *testing.T) {
	cases := map[board.Board]string{
		board.Chat:     "messages",
		board.Diary:    "posts_diary",
		board.Pets:     "posts_pets",
		board.Homework: "posts_homework",
		board.Rewards:  "posts_rewards",
		board.Birthday: "posts_birthday",
	}
	for b, want := range cases {
		got, ok := b.Collection()
		assert.True(t, ok, "%s should have a feed", b)
		assert.Equal(t, want, got)
	}
}

func TestNavigationBoardsHaveNoFeed(t *testing.T) {
	for _, b := range []board.Board{board.Login, board.Dashboard, board.Admin} {
		_, ok := b.Collection()
		assert.False(t, ok, "%s is navigation-only", b)
		assert.False(t, b.HasFeed())
	}
}

func TestForPostType(t *testing.T) {
	c, ok := board.ForPostType(models.PostTypeRewards)
	assert.True(t, ok)
	assert.Equal(t, "posts_rewards", c)

	_, ok = board.ForPostType(models.PostType("garbage"))
	assert.False(t, ok)
}
