// Package poller implements the quote fallback poller.
//
// While the streaming feed is down, the poller periodically fetches REST
// quotes for every subscribed symbol and hands new ones to the broadcaster
// as ticks, so dashboards keep moving at a lower rate. A quote is delivered
// only when its timestamp advances.
package poller
