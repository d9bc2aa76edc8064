package tgutil

import "github.com/gotd/td/tg"

// Callback query payloads of the result card keyboard.
const (
	CallbackPrev     = "prev"
	CallbackNext     = "next"
	CallbackDownload = "download"
)

// ResultKeyboard builds the inline keyboard of one search result card: an
// optional Prev/Next navigation row and a download row.
func ResultKeyboard(hasPrev, hasNext bool) tg.ReplyMarkupClass {
	var nav []tg.KeyboardButtonClass
	if hasPrev {
		nav = append(nav, &tg.KeyboardButtonCallback{Text: "⬅️ Prev", Data: []byte(CallbackPrev)}) //nolint:exhaustruct
	}
	if hasNext {
		nav = append(nav, &tg.KeyboardButtonCallback{Text: "Next ➡️", Data: []byte(CallbackNext)}) //nolint:exhaustruct
	}

	rows := make([]tg.KeyboardButtonRow, 0, 2)
	if len(nav) > 0 {
		rows = append(rows, tg.KeyboardButtonRow{Buttons: nav})
	}
	rows = append(rows, tg.KeyboardButtonRow{
		Buttons: []tg.KeyboardButtonClass{
			&tg.KeyboardButtonCallback{Text: "Download 🎧", Data: []byte(CallbackDownload)}, //nolint:exhaustruct
		},
	})
	return &tg.ReplyInlineMarkup{Rows: rows}
}

// InputPeer resolves an update's peer against the update entities.
func InputPeer(e tg.Entities, peer tg.PeerClass) (tg.InputPeerClass, bool) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		u, ok := e.Users[p.UserID]
		if !ok {
			return nil, false
		}
		return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, true
	case *tg.PeerChat:
		if _, ok := e.Chats[p.ChatID]; !ok {
			return nil, false
		}
		return &tg.InputPeerChat{ChatID: p.ChatID}, true
	case *tg.PeerChannel:
		ch, ok := e.Channels[p.ChannelID]
		if !ok {
			return nil, false
		}
		return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, true
	default:
		return nil, false
	}
}
