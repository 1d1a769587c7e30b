// Package notifications emits typed notices about meetup activity.
//
// Delivery (mail, push, in-app inbox) is handled by a separate worker. This
// package only produces notices and hands them over: RedisPublisher pushes
// the JSON notice onto a list and announces it on a pub/sub channel,
// LogPublisher writes it to the application log when Redis is not
// configured.
//
// Notices are emitted after the transaction that caused them commits, so a
// rolled back transition never notifies anyone.
package notifications
