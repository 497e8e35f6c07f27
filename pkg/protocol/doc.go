// Package protocol implements the binary wire format spoken on peerhub
// channels and the Codec abstraction the hub injects per client.
//
// Every message is a frame: a 4-byte header (type, flags, big-endian
// payload length) followed by the payload. Four frame types exist:
// Hello (peer introduction), Data (application payload), Heartbeat
// (liveness signal), and Goodbye (orderly close).
//
// The hub itself never interprets payloads; it only cares that heartbeat
// frames exist so channels can surface liveness signals. Applications
// exchange Data frames through the Channel API.
package protocol
