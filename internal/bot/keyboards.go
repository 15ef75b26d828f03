package bot

import (
	"fmt"

	"github.com/nerrad567/relay-bridge/internal/device"
)

// Inline keyboard builders. Every Data field is a token from
// callbacks.go; text composition lives in render.go.

// truncateLabel keeps button labels readable on small screens.
func truncateLabel(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// controlListKeyboard is the paginated device picker, one device per
// row, with global bulk controls at the bottom.
func controlListKeyboard(devices []device.Device, page, totalPages int) *Keyboard {
	kb := &Keyboard{}
	for _, d := range devices {
		label := fmt.Sprintf("%s %s", statusEmoji(d.Online), truncateLabel(d.Name, 28))
		kb.Rows = append(kb.Rows, []Button{
			{Text: label, Data: openDeviceToken(d.ID)},
		})
	}

	if totalPages > 1 {
		var nav []Button
		if page > 0 {
			nav = append(nav, Button{Text: "⬅️ Prev", Data: pageToken(page - 1)})
		}
		if page < totalPages-1 {
			nav = append(nav, Button{Text: "Next ➡️", Data: pageToken(page + 1)})
		}
		kb.Rows = append(kb.Rows, nav)
	}

	kb.Rows = append(kb.Rows, []Button{
		{Text: "🔆 All ON", Data: globalAllToken(true)},
		{Text: "🌑 All OFF", Data: globalAllToken(false)},
	})
	return kb
}

// controlKeyboard is the per-device switch grid.
func controlKeyboard(d device.Device) *Keyboard {
	kb := &Keyboard{}

	var grid []Button
	for relay := 1; relay <= device.NumRelays; relay++ {
		grid = append(grid, Button{
			Text: fmt.Sprintf("%d %s", relay, onOff(d.Switches[relay-1])),
			Data: toggleToken(d.ID, relay),
		})
	}
	kb.Rows = append(kb.Rows, grid)

	kb.Rows = append(kb.Rows, []Button{
		{Text: "🔆 All ON", Data: deviceAllToken(d.ID, true)},
		{Text: "🌑 All OFF", Data: deviceAllToken(d.ID, false)},
	})

	extras := []Button{{Text: "⬅️ Back", Data: backToken()}}
	if d.IP != "" {
		extras = append(extras, Button{Text: "🌐 Web page", URL: "http://" + d.IP})
	}
	kb.Rows = append(kb.Rows, extras)
	return kb
}

// deviceManageKeyboard gives each device a rename, restart-memory and
// remove row.
func deviceManageKeyboard(devices []device.Device) *Keyboard {
	kb := &Keyboard{}
	for _, d := range devices {
		kb.Rows = append(kb.Rows, []Button{
			{Text: fmt.Sprintf("✏️ %s", truncateLabel(d.Name, 20)), Data: renameToken(d.ID)},
			{Text: fmt.Sprintf("💾 %s", onOff(d.Remember)), Data: rememberToken(d.ID)},
			{Text: "🗑", Data: removeToken(d.ID)},
		})
	}
	return kb
}

// pendingKeyboard offers one approval button per discovered device.
func pendingKeyboard(pending []device.PendingDevice) *Keyboard {
	kb := &Keyboard{}
	for _, p := range pending {
		kb.Rows = append(kb.Rows, []Button{
			{Text: fmt.Sprintf("✅ Approve %s", truncateLabel(p.ID, 24)), Data: approveToken(p.ID)},
		})
	}
	return kb
}

// webuiKeyboard links to each device's own web page, when its address
// is known.
func webuiKeyboard(devices []device.Device) *Keyboard {
	kb := &Keyboard{}
	for _, d := range devices {
		if d.IP != "" {
			kb.Rows = append(kb.Rows, []Button{
				{Text: fmt.Sprintf("🌐 %s", truncateLabel(d.Name, 26)), URL: "http://" + d.IP},
			})
			continue
		}
		kb.Rows = append(kb.Rows, []Button{
			{Text: fmt.Sprintf("❔ %s", truncateLabel(d.Name, 26)), Data: webLinkToken(d.ID)},
		})
	}
	if len(kb.Rows) == 0 {
		return nil
	}
	return kb
}
