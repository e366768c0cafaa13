// Package feed adapts the Finnhub trade stream into a provider-neutral tick source.
//
// The Adapter owns one upstream WebSocket session at a time. It remembers
// every symbol the hub wants and replays the set each time a new session is
// established, so callers never resubscribe after a reconnect.
//
// Upstream frames:
//
//	-> {"type":"subscribe","symbol":"AAPL"}
//	-> {"type":"unsubscribe","symbol":"AAPL"}
//	<- {"type":"trade","data":[{"s":"AAPL","p":189.5,"t":1700000000000,"v":100}]}
//	<- {"type":"ping"}
//	<- {"type":"error","msg":"..."}
package feed
