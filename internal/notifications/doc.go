// Package notifications delivers push notifications for capture and
// submission milestones through ntfy. Without a configured topic every
// notification is a no-op.
package notifications
