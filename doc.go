// Package mqtt311 implements the client side of the MQTT 3.1.1 protocol.
//
// The package provides a wire codec for all MQTT 3.1.1 control packets
// and a synchronous, single-threaded connection engine built on top of
// it. The engine supports QoS 0 and QoS 1 delivery; QoS 2 is rejected
// loudly at every entry point rather than silently degraded.
//
// Conn holds no internal locks and spawns no goroutines. Inbound
// traffic is consumed cooperatively: call Pump to block for the next
// packet or TryPump to poll without blocking, which suits device main
// loops. Callers that need concurrent access serialize it themselves;
// the extensions/hub package shows one way to do that.
//
// Transports are pluggable through the Dialer interface, with TCP,
// TLS, HTTP/SOCKS5 proxy, WebSocket and QUIC dialers included.
package mqtt311
