// Package itch defines the typed NASDAQ ITCH 5.0 events the engine
// consumes and the router that maps each event onto order book
// operations. Decoding the wire format lives in infra/decoder.
package itch
