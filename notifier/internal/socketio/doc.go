// Package socketio encodes and decodes the Engine.IO v4 and Socket.IO v5
// packets a client exchanges over the WebSocket transport.
//
// Engine.IO frames are a single type digit followed by an optional payload:
//
//	0{"sid":"...","pingInterval":25000,"pingTimeout":20000}   open
//	2                                                         ping
//	3                                                         pong
//	4<socket.io packet>                                       message
//
// Socket.IO packets carried in a message frame:
//
//	0[/ns,][{auth}]            CONNECT (client) / CONNECT ack (server)
//	1[/ns,]                    DISCONNECT
//	2[/ns,][id]["name",args]   EVENT
//	4[/ns,]{"message":"..."}   CONNECT_ERROR
//
// Only the text packet types are decoded into events; binary events are
// reported with their type so callers can skip them.
package socketio
