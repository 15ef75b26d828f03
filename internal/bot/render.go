package bot

import (
	"fmt"
	"strings"

	"github.com/nerrad567/relay-bridge/internal/device"
)

// Message text composition. Keyboards live in keyboards.go; this file
// only builds strings.

// escapeMarkdown escapes the characters the chat platform's legacy
// Markdown mode treats as formatting.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"`", "\\`",
		"[", "\\[",
	)
	return replacer.Replace(s)
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func statusEmoji(online bool) string {
	if online {
		return "🟢"
	}
	return "📴"
}

// capacityBanner returns the warning line shown on device lists when
// the registry is close to full, or "" below the threshold.
func (b *Bot) capacityBanner() string {
	r := b.registry()
	if !r.AtWarning() {
		return ""
	}
	return fmt.Sprintf("⚠️ *%d of %d device slots used.*\n\n",
		r.Count(), r.MaxDevices())
}

// renderControlList heads the paginated control keyboard.
func (b *Bot) renderControlList(totalPages, page int) string {
	var sb strings.Builder
	sb.WriteString(b.capacityBanner())
	sb.WriteString("🎛 *Device Control*\nPick a device:")
	if totalPages > 1 {
		fmt.Fprintf(&sb, "\n_Page %d of %d_", page+1, totalPages)
	}
	return sb.String()
}

// renderControlView is the per-device control screen.
func renderControlView(d device.Device) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *%s*\n", statusEmoji(d.Online), escapeMarkdown(d.Name))

	states := make([]string, device.NumRelays)
	for i, on := range d.Switches {
		states[i] = fmt.Sprintf("%d:%s", i+1, onOff(on))
	}
	fmt.Fprintf(&sb, "Switches: %s\n", strings.Join(states, "  "))
	fmt.Fprintf(&sb, "Remember state: %s", onOff(d.Remember))

	if d.IP != "" {
		fmt.Fprintf(&sb, "\nIP: `%s`", d.IP)
	}
	if !d.Online {
		sb.WriteString("\n\n📴 _Device is offline. Commands will apply when it reconnects._")
	}
	return sb.String()
}

// renderStatus is the /status overview: every device, one line each.
func (b *Bot) renderStatus() string {
	devices := b.registry().List()
	if len(devices) == 0 {
		return "No devices registered yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *Status* (%d devices)\n\n", len(devices))
	for _, d := range devices {
		onCount := 0
		for _, on := range d.Switches {
			if on {
				onCount++
			}
		}
		fmt.Fprintf(&sb, "%s *%s* - %d/%d on\n",
			statusEmoji(d.Online), escapeMarkdown(d.Name), onCount, device.NumRelays)
	}
	return sb.String()
}

// renderDeviceList heads the /devices management keyboard.
func (b *Bot) renderDeviceList(count int) string {
	var sb strings.Builder
	sb.WriteString(b.capacityBanner())
	if count == 0 {
		sb.WriteString("No devices registered yet.")
		return sb.String()
	}
	fmt.Fprintf(&sb, "🔧 *Device Management* (%d of %d)\n", count, b.registry().MaxDevices())
	sb.WriteString("Rename, toggle restart memory, or remove:")
	return sb.String()
}

// renderPendingDevices heads the /pending approval keyboard.
func (b *Bot) renderPendingDevices(pending []device.PendingDevice) string {
	var sb strings.Builder
	sb.WriteString(b.capacityBanner())
	if len(pending) == 0 {
		sb.WriteString("No devices waiting for approval.")
		return sb.String()
	}
	fmt.Fprintf(&sb, "🆕 *Pending Devices* (%d)\n", len(pending))
	for i, p := range pending {
		fmt.Fprintf(&sb, "%d. `%s` - first seen %s\n",
			i+1, p.ID, p.FirstSeen.Format("2006-01-02 15:04"))
	}
	sb.WriteString("\nTap a device to approve it.")
	return sb.String()
}

// renderUsers is the /users membership listing. The administrator is
// marked; pending registrations are listed with the chat id used by
// /approveuser.
func (b *Bot) renderUsers() string {
	var sb strings.Builder
	sb.WriteString("👥 *Operators*\n")
	for _, user := range b.users.List() {
		name := user.Name
		if name == "" {
			name = fmt.Sprintf("user %d", user.ID)
		}
		if b.users.IsAdmin(user.ID) {
			fmt.Fprintf(&sb, "• %s (admin)\n", escapeMarkdown(name))
		} else {
			fmt.Fprintf(&sb, "• %s\n", escapeMarkdown(name))
		}
	}

	pending := b.users.PendingList()
	if len(pending) > 0 {
		sb.WriteString("\n⏳ *Pending registrations*\n")
		for i, p := range pending {
			fmt.Fprintf(&sb, "%d. %s (id %d)\n", i+1, escapeMarkdown(p.Name), p.ID)
		}
		sb.WriteString("\nApprove with /approveuser <userId> <password>.")
	}
	return sb.String()
}

// renderWebUI lists the dashboard plus per-device web links.
func (b *Bot) renderWebUI() string {
	var sb strings.Builder
	sb.WriteString("🌐 *Web Access*\n")
	if b.dashboardURL != "" {
		fmt.Fprintf(&sb, "Dashboard: %s\n", b.dashboardURL)
	}

	devices := b.registry().List()
	if len(devices) == 0 {
		sb.WriteString("\nNo devices registered yet.")
		return sb.String()
	}
	sb.WriteString("\nDevice pages (❔ marks devices that have not reported an address yet):")
	return sb.String()
}

const helpText = `🏠 *Relay Bridge*

*Control*
/control - pick a device and toggle its switches
/status - one-line overview of every device
/remember <device> - toggle restart-state memory

*Management*
/devices - rename, remove, or configure devices
/pending - approve newly discovered devices
/users - list operators and pending registrations
/webui - dashboard and device web links

*Dialogs*
/confirm - confirm a pending removal
/skip - approve a device with its default name
/cancel - abandon the current dialog`

const registerHelp = `This bridge is private.
Register with: /register <password>
An existing operator will approve your request.`
