// Package auth implements operator membership for Relay Bridge.
//
// Operators are chat platform users. Membership is a flat set with one
// distinguished administrator id from configuration. Joining is
// password-gated and two-step: a requester self-registers with the
// shared password, then an existing operator approves the pending
// request (presenting the password again).
//
// Wrong-password failures are indistinguishable whether or not the
// requester is already pending.
package auth
