// Package notify fans job lifecycle events out to per-session subscribers.
// Events for one sequence group are delivered in emission order with strictly
// increasing sequence numbers, progress never moves backwards, and nothing
// follows a terminal event. Subscribers joining mid-job receive only events
// emitted after they subscribe.
package notify
