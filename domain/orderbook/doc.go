// Package orderbook implements the per-instrument limit order book.
// It keeps bid and ask levels in two ordered trees, a FIFO queue per
// price, and an order-id index so cancels and modifies never scan.
//
// The book can run as a price-time priority matching engine or as a
// passive mirror of an exchange feed that already reports executions.
// It is single-writer and never logs or blocks.
package orderbook
