// Package notifications stores site notifications (announcements, stream
// alerts) and push subscriptions, and delivers pushes to subscribers.
//
// Creating a notification fans out one PENDING push per subscription whose
// tags include the notification's tag. A Dispatcher drains pending pushes
// through a Sender, marking each DONE once delivered or once it has used up
// its attempts.
package notifications
