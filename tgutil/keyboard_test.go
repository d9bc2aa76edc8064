package tgutil_test

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/tgym/tgutil"
)

func TestResultKeyboard(t *testing.T) {
	t.Parallel()

	t.Run("first_result", func(t *testing.T) {
		t.Parallel()

		kb, ok := tgutil.ResultKeyboard(false, true).(*tg.ReplyInlineMarkup)
		require.True(t, ok)
		require.Len(t, kb.Rows, 2)
		require.Len(t, kb.Rows[0].Buttons, 1)
		assert.Equal(t, "Next ➡️", kb.Rows[0].Buttons[0].(*tg.KeyboardButtonCallback).Text)
	})

	t.Run("middle_result", func(t *testing.T) {
		t.Parallel()

		kb, ok := tgutil.ResultKeyboard(true, true).(*tg.ReplyInlineMarkup)
		require.True(t, ok)
		require.Len(t, kb.Rows, 2)
		assert.Len(t, kb.Rows[0].Buttons, 2)
	})

	t.Run("single_result_has_download_only", func(t *testing.T) {
		t.Parallel()

		kb, ok := tgutil.ResultKeyboard(false, false).(*tg.ReplyInlineMarkup)
		require.True(t, ok)
		require.Len(t, kb.Rows, 1)
		down, ok := kb.Rows[0].Buttons[0].(*tg.KeyboardButtonCallback)
		require.True(t, ok)
		assert.Equal(t, []byte(tgutil.CallbackDownload), down.Data)
	})
}
