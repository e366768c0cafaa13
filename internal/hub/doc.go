// Package hub multiplexes one upstream tick stream across many downstream
// WebSocket clients.
//
// Three collaborators make up the hub:
//
//   - Registry tracks which client wants which symbol and subscribes upstream
//     only on a symbol's first subscriber (and unsubscribes on its last).
//   - Broadcaster drains the tick source and enqueues each tick, encoded once,
//     to the symbol's current subscribers.
//   - Hub owns the client connections: it upgrades HTTP requests, parses
//     client frames, and tears a client down on any transport failure.
//
// Every client has a bounded outbound queue drained by its own writer
// goroutine. A full queue disconnects that client; other clients are not
// affected.
//
// Client protocol:
//
//	-> {"type":"subscribe","symbol":"AAPL"}
//	<- {"type":"subscribed","symbol":"AAPL"}
//	<- {"type":"tick","symbol":"AAPL","price":189.5,"ts":1700000000000}
//	-> {"type":"unsubscribe","symbol":"AAPL"}
//	<- {"type":"unsubscribed","symbol":"AAPL"}
package hub
