// Package bot implements the chat command surface: slash commands,
// inline keyboards, callback dispatch, and the per-operator multi-turn
// dialogs for renaming, removing, and approving devices.
//
// The package is chat-platform agnostic. It speaks through the ChatAPI
// interface and receives normalised Update values from an adapter; the
// telegram subpackage provides the production adapter. All device and
// membership mutations go through the engine and its registries, never
// directly to the transport.
package bot
