package bot

import (
	"context"
	"testing"
)

func TestUnauthorizedCommandPointsAtRegistration(t *testing.T) {
	h := newTestHarness(t)

	for _, text := range []string{"/start", "/help", "/control", "/devices"} {
		h.bot.HandleUpdate(context.Background(), command(42, text))
		assertContains(t, h.lastSent(t).Text, "/register")
	}
}

func TestRegisterQueuesAndNotifiesOperators(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	u := command(42, "/register "+testPassword)
	u.UserName = "carol"
	h.bot.HandleUpdate(ctx, u)

	if len(h.users.PendingList()) != 1 {
		t.Fatalf("pending users = %d, want 1", len(h.users.PendingList()))
	}

	// Requester gets an acknowledgement, the admin gets a broadcast.
	var ackSeen, adminSeen bool
	for _, msg := range h.chat.sent {
		if msg.ChatID == 42 {
			ackSeen = true
		}
		if msg.ChatID == testAdminID {
			adminSeen = true
			assertContains(t, msg.Text, "carol")
			// The broadcast carries the id operators paste into
			// /approveuser.
			assertContains(t, msg.Text, "/approveuser 42")
		}
	}
	if !ackSeen || !adminSeen {
		t.Fatalf("ack=%v adminNotified=%v, want both", ackSeen, adminSeen)
	}
}

func TestRegisterWrongPassword(t *testing.T) {
	h := newTestHarness(t)

	h.bot.HandleUpdate(context.Background(), command(42, "/register nope"))

	assertContains(t, h.lastSent(t).Text, "Wrong password")
	if len(h.users.PendingList()) != 0 {
		t.Fatal("wrong password created a pending user")
	}
}

func TestRegisterAlreadyAuthorized(t *testing.T) {
	h := newTestHarness(t)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/register "+testPassword))

	assertContains(t, h.lastSent(t).Text, "already registered")
}

func TestApproveUserByID(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	reg := command(555666777, "/register "+testPassword)
	reg.UserName = "carol"
	h.bot.HandleUpdate(ctx, reg)

	h.bot.HandleUpdate(ctx, command(testAdminID, "/approveuser 555666777 "+testPassword))

	if !h.users.IsAuthorized(555666777) {
		t.Fatal("approved user is not authorized")
	}

	// The new operator receives a welcome.
	welcomed := false
	for _, msg := range h.chat.sent {
		if msg.ChatID == 555666777 {
			welcomed = true
		}
	}
	if !welcomed {
		t.Fatal("approved user got no welcome message")
	}
}

func TestApproveUserByListPosition(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	reg := command(42, "/register "+testPassword)
	reg.UserName = "carol"
	h.bot.HandleUpdate(ctx, reg)

	// The 1-based /users position works as a shorthand for the id.
	h.bot.HandleUpdate(ctx, command(testAdminID, "/approveuser 1 "+testPassword))

	if !h.users.IsAuthorized(42) {
		t.Fatal("approved user is not authorized")
	}
}

func TestApproveUserWrongPassword(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, command(42, "/register "+testPassword))
	h.bot.HandleUpdate(ctx, command(testAdminID, "/approveuser 1 nope"))

	assertContains(t, h.lastSent(t).Text, "Wrong password")
	if h.users.IsAuthorized(42) {
		t.Fatal("wrong password still approved the user")
	}
}

func TestApproveUserUnknownID(t *testing.T) {
	h := newTestHarness(t)

	for _, text := range []string{
		"/approveuser 5 " + testPassword,
		"/approveuser 987654321 " + testPassword,
	} {
		h.bot.HandleUpdate(context.Background(), command(testAdminID, text))
		assertContains(t, h.lastSent(t).Text, "No pending registration")
	}
}

func TestHelpForOperator(t *testing.T) {
	h := newTestHarness(t)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/help"))

	msg := h.lastSent(t)
	assertContains(t, msg.Text, "/control")
	if !msg.Markdown {
		t.Fatal("help should render as Markdown")
	}
}

func TestCommandWithBotSuffix(t *testing.T) {
	h := newTestHarness(t)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/help@relay_bridge_bot"))

	assertContains(t, h.lastSent(t).Text, "/control")
}

func TestControlWithNoDevices(t *testing.T) {
	h := newTestHarness(t)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/control"))

	assertContains(t, h.lastSent(t).Text, "No devices")
}

func TestControlListsDevices(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)
	h.addDevice(t, "sensor_02", "Fan", false)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/control"))

	msg := h.lastSent(t)
	if msg.Keyboard == nil {
		t.Fatal("control list has no keyboard")
	}
	// Two device rows plus the global bulk row.
	if len(msg.Keyboard.Rows) != 3 {
		t.Fatalf("keyboard rows = %d, want 3", len(msg.Keyboard.Rows))
	}
	assertContains(t, msg.Keyboard.Rows[0][0].Text, "Lamp")
}

func TestStatusOverview(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)

	ctx := context.Background()
	if _, err := h.registry.SetSwitch(ctx, "sensor_01", 1, true); err != nil {
		t.Fatalf("setting switch: %v", err)
	}

	h.bot.HandleUpdate(ctx, command(testAdminID, "/status"))

	assertContains(t, h.lastSent(t).Text, "1/4 on")
}

func TestPendingListShowsApprovals(t *testing.T) {
	h := newTestHarness(t)
	h.addPending(t, "sensor_01")

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/pending"))

	msg := h.lastSent(t)
	assertContains(t, msg.Text, "sensor_01")
	if msg.Keyboard == nil || len(msg.Keyboard.Rows) != 1 {
		t.Fatal("pending list should offer one approval button")
	}
}

func TestUsersShowsAdminMarker(t *testing.T) {
	h := newTestHarness(t)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/users"))

	assertContains(t, h.lastSent(t).Text, "(admin)")
}

func TestWebUIListsDashboard(t *testing.T) {
	h := newTestHarness(t)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/webui"))

	assertContains(t, h.lastSent(t).Text, "http://bridge.local:3000")
}

func TestRememberCommand(t *testing.T) {
	h := newTestHarness(t)
	h.addDevice(t, "sensor_01", "Lamp", true)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/remember sensor_01"))

	found := false
	for _, p := range h.transport.published {
		if p.topic == "device/sensor_01/command/remember" && p.payload == "1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no remember command published, got %+v", h.transport.published)
	}
	assertContains(t, h.lastSent(t).Text, "remember")
}

func TestRememberUnknownDevice(t *testing.T) {
	h := newTestHarness(t)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/remember ghost"))

	assertContains(t, h.lastSent(t).Text, "Unknown device")
}

func TestUnknownCommand(t *testing.T) {
	h := newTestHarness(t)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/teleport"))

	assertContains(t, h.lastSent(t).Text, "Unknown command")
}

func TestCapacityBannerShown(t *testing.T) {
	cfg := testConfig()
	cfg.Max = 3
	cfg.WarningThreshold = 2
	h := newTestHarnessWithConfig(t, cfg)
	h.addDevice(t, "sensor_01", "Lamp", false)
	h.addDevice(t, "sensor_02", "Fan", false)

	h.bot.HandleUpdate(context.Background(), command(testAdminID, "/devices"))

	assertContains(t, h.lastSent(t).Text, "2 of 3 device slots used")
}
