package service

import (
	"fmt"
	"io"
	"text/tabwriter"

	"itchbook/domain/orderbook"
)

// WriteBook prints the resting orders of the top levels of book side by
// side, asks on the left. Rows are individual orders, not aggregates, and
// at most levels rows are printed.
func WriteBook(w io.Writer, symbol string, book *orderbook.OrderBook, levels int) error {
	asks := book.Depth(orderbook.Ask, levels)
	bids := book.Depth(orderbook.Bid, levels)

	tw := tabwriter.NewWriter(w, 15, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "--------- %s ---------\n", symbol)
	fmt.Fprint(tw, "Ask (Sell)\t | \tBid (Buy)\t\n")
	for i := 0; i < levels && (i < len(asks) || i < len(bids)); i++ {
		var a, b string
		if i < len(asks) {
			a = entry(asks[i])
		}
		if i < len(bids) {
			b = entry(bids[i])
		}
		fmt.Fprintf(tw, "%s\t | \t%s\t\n", a, b)
	}
	fmt.Fprint(tw, "-------------------------------\n")
	return tw.Flush()
}

func entry(e orderbook.DepthEntry) string {
	return fmt.Sprintf("%d @ %s", e.Quantity, e.Price)
}
