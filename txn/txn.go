// Package txn implements a transaction's process-local staging buffers:
// pending subscription actions and pending outbound notifications, with
// a nesting stack so a subtransaction's buffers can be discarded on
// abort without touching its parent's.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package txn

import "github.com/aisnotify/notifyd/wire"

// ActionKind distinguishes the three subscription-management operations
// a transaction can stage.
type ActionKind int

const (
	Subscribe ActionKind = iota
	Unsubscribe
	UnsubscribeAll
)

// Action is one staged subscription-management call.
type Action struct {
	Kind    ActionKind
	Channel string
}

// Buffers holds one transaction's (or subtransaction's) pending actions
// and pending notifications, plus the parent-scope stacks a nested
// subtransaction pushes onto at sub-start and resolves at sub-commit or
// sub-abort.
type Buffers struct {
	actions       []Action
	notifications []wire.Notification

	actionStack [][]Action
	notifStack  [][]wire.Notification
}

// New returns empty top-level buffers.
func New() *Buffers { return &Buffers{} }

// StageSubscribe appends a Subscribe action. Duplicate collapsing is
// intentionally not performed on pending_actions.
func (b *Buffers) StageSubscribe(channel string) {
	b.actions = append(b.actions, Action{Kind: Subscribe, Channel: channel})
}

// StageUnsubscribe appends an Unsubscribe action.
func (b *Buffers) StageUnsubscribe(channel string) {
	b.actions = append(b.actions, Action{Kind: Unsubscribe, Channel: channel})
}

// StageUnsubscribeAll appends an UnsubscribeAll action.
func (b *Buffers) StageUnsubscribeAll() {
	b.actions = append(b.actions, Action{Kind: UnsubscribeAll})
}

// Publish stages a notification, collapsing it into an existing pending
// entry with the same (channel, payload). The tail element is checked
// first — the common case of repeated NOTIFYs to the same channel in a
// tight loop — before falling back to a scan of the rest.
func (b *Buffers) Publish(channel, payload string) {
	n := len(b.notifications)
	if n > 0 {
		last := b.notifications[n-1]
		if last.Channel == channel && last.Payload == payload {
			return
		}
		for i := 0; i < n-1; i++ {
			if b.notifications[i].Channel == channel && b.notifications[i].Payload == payload {
				return
			}
		}
	}
	b.notifications = append(b.notifications, wire.Notification{Channel: channel, Payload: payload})
}

// Actions returns the currently staged actions, in original call order.
func (b *Buffers) Actions() []Action { return b.actions }

// Notifications returns the currently staged notifications, in original
// publish-call order.
func (b *Buffers) Notifications() []wire.Notification { return b.notifications }

// NotificationsPending reports whether any notification is still staged.
func (b *Buffers) NotificationsPending() bool { return len(b.notifications) > 0 }

// PeekFrontNotification returns the oldest staged notification without
// removing it.
func (b *Buffers) PeekFrontNotification() wire.Notification { return b.notifications[0] }

// PopFrontNotification removes and returns the oldest staged
// notification.
func (b *Buffers) PopFrontNotification() wire.Notification {
	n := b.notifications[0]
	b.notifications = b.notifications[1:]
	return n
}

// ActionsEmpty reports whether no actions are staged — PREPARE TRANSACTION
// requires this to hold.
func (b *Buffers) ActionsEmpty() bool { return len(b.actions) == 0 }

// ClearNotifications drops every staged notification, on abort or once
// PREPARE has persisted them. Pre-commit instead pops each one as it is
// encoded into the queue.
func (b *Buffers) ClearNotifications() { b.notifications = nil }

// ClearActions drops every staged action once it's been applied at
// pre-commit.
func (b *Buffers) ClearActions() { b.actions = nil }

// SubStart pushes the current level's buffers onto the nesting stack and
// starts the subtransaction with empty ones, per the subtransaction
// model in spec.md §4.8.
func (b *Buffers) SubStart() {
	b.actionStack = append(b.actionStack, b.actions)
	b.notifStack = append(b.notifStack, b.notifications)
	b.actions = nil
	b.notifications = nil
}

// SubCommit folds the subtransaction's buffers into its parent's,
// preserving order (parent entries, then the subtransaction's).
func (b *Buffers) SubCommit() {
	n := len(b.actionStack) - 1
	parentActions := b.actionStack[n]
	parentNotifs := b.notifStack[n]
	b.actionStack = b.actionStack[:n]
	b.notifStack = b.notifStack[:n]

	b.actions = append(parentActions, b.actions...)
	b.notifications = append(parentNotifs, b.notifications...)
}

// SubAbort discards the subtransaction's buffers entirely and restores
// its parent's.
func (b *Buffers) SubAbort() {
	n := len(b.actionStack) - 1
	b.actions = b.actionStack[n]
	b.notifications = b.notifStack[n]
	b.actionStack = b.actionStack[:n]
	b.notifStack = b.notifStack[:n]
}

// NestDepth reports how many subtransaction levels are currently pushed.
func (b *Buffers) NestDepth() int { return len(b.actionStack) }
