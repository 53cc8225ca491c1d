// Package ws implements the dashboard WebSocket hub, mounted at /ws/stream.
//
// Hub.Run(ctx) broadcasts on a ticker and on every Notify call (the API
// handler notifies after resets, refreshes and setup edits). ServeHTTP sends
// the current dashboard immediately on connect.
//
// Message format:
//
//	{
//	  "event": "dashboard",
//	  "seq":   42,
//	  "data":  { /* same schema as GET /api/v1/dashboard */ }
//	}
//
// A client may send {"event":"refresh"} to ask for an immediate broadcast.
// Anything else it sends is ignored.
//
// Clients whose send buffer fills up are disconnected.
package ws
