package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// CallbackKind identifies what a pressed button asks for.
type CallbackKind int

// CallbackKind values.
const (
	CallbackOpenDevice CallbackKind = iota
	CallbackToggleSwitch
	CallbackDeviceAll
	CallbackGlobalAll
	CallbackPage
	CallbackRename
	CallbackRemove
	CallbackRemember
	CallbackApprove
	CallbackWebLink
	CallbackBack
)

// Callback is a decoded button press. Tokens use an explicit
// kind:arg[:arg] grammar with non-overlapping kinds, decoded once at
// the boundary; dispatch is a single switch on Kind.
type Callback struct {
	Kind     CallbackKind
	DeviceID string
	Relay    int
	On       bool
	Page     int
}

// Token grammar kinds. Short to stay inside the platform's 64-byte
// callback data limit with a device id attached.
const (
	tokenOpenDevice = "dev"
	tokenToggle     = "sw"
	tokenDeviceAll  = "devall"
	tokenGlobalAll  = "gall"
	tokenPage       = "page"
	tokenRename     = "rn"
	tokenRemove     = "rm"
	tokenRemember   = "mem"
	tokenApprove    = "appr"
	tokenWebLink    = "web"
	tokenBack       = "back"
)

// Token builders keep the grammar in one place.

func openDeviceToken(id string) string     { return tokenOpenDevice + ":" + id }
func toggleToken(id string, relay int) string {
	return fmt.Sprintf("%s:%s:%d", tokenToggle, id, relay)
}
func deviceAllToken(id string, on bool) string {
	return fmt.Sprintf("%s:%s:%s", tokenDeviceAll, id, boolArg(on))
}
func globalAllToken(on bool) string { return tokenGlobalAll + ":" + boolArg(on) }
func pageToken(page int) string     { return fmt.Sprintf("%s:%d", tokenPage, page) }
func renameToken(id string) string  { return tokenRename + ":" + id }
func removeToken(id string) string  { return tokenRemove + ":" + id }
func rememberToken(id string) string { return tokenRemember + ":" + id }
func approveToken(id string) string { return tokenApprove + ":" + id }
func webLinkToken(id string) string { return tokenWebLink + ":" + id }
func backToken() string             { return tokenBack }

func boolArg(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// ParseCallback decodes a callback token.
// Returns ErrBadCallback for unknown kinds, missing arguments, or
// malformed numbers.
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	kind := parts[0]
	args := parts[1:]

	fail := func() (Callback, error) {
		return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
	}

	switch kind {
	case tokenOpenDevice:
		if len(args) != 1 || args[0] == "" {
			return fail()
		}
		return Callback{Kind: CallbackOpenDevice, DeviceID: args[0]}, nil

	case tokenToggle:
		if len(args) != 2 || args[0] == "" {
			return fail()
		}
		relay, err := strconv.Atoi(args[1])
		if err != nil {
			return fail()
		}
		return Callback{Kind: CallbackToggleSwitch, DeviceID: args[0], Relay: relay}, nil

	case tokenDeviceAll:
		if len(args) != 2 || args[0] == "" || (args[1] != "0" && args[1] != "1") {
			return fail()
		}
		return Callback{Kind: CallbackDeviceAll, DeviceID: args[0], On: args[1] == "1"}, nil

	case tokenGlobalAll:
		if len(args) != 1 || (args[0] != "0" && args[0] != "1") {
			return fail()
		}
		return Callback{Kind: CallbackGlobalAll, On: args[0] == "1"}, nil

	case tokenPage:
		if len(args) != 1 {
			return fail()
		}
		page, err := strconv.Atoi(args[0])
		if err != nil || page < 0 {
			return fail()
		}
		return Callback{Kind: CallbackPage, Page: page}, nil

	case tokenRename:
		if len(args) != 1 || args[0] == "" {
			return fail()
		}
		return Callback{Kind: CallbackRename, DeviceID: args[0]}, nil

	case tokenRemove:
		if len(args) != 1 || args[0] == "" {
			return fail()
		}
		return Callback{Kind: CallbackRemove, DeviceID: args[0]}, nil

	case tokenRemember:
		if len(args) != 1 || args[0] == "" {
			return fail()
		}
		return Callback{Kind: CallbackRemember, DeviceID: args[0]}, nil

	case tokenApprove:
		if len(args) != 1 || args[0] == "" {
			return fail()
		}
		return Callback{Kind: CallbackApprove, DeviceID: args[0]}, nil

	case tokenWebLink:
		if len(args) != 1 || args[0] == "" {
			return fail()
		}
		return Callback{Kind: CallbackWebLink, DeviceID: args[0]}, nil

	case tokenBack:
		if len(args) != 0 {
			return fail()
		}
		return Callback{Kind: CallbackBack}, nil
	}

	return fail()
}
