// Package event holds the messages exchanged with external workers over the
// event bus: inbound StatusEvents and outbound Notifications.
package event
