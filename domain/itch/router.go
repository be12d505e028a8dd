package itch

import "itchbook/domain/orderbook"

// Route applies one event to the instrument's book and returns any trades
// the book computed. It holds no state of its own.
//
// Executions, cancels and deletes are facts reported by the exchange and
// adjust the book directly; adds and replaces go through AddOrder and may
// cross when the book runs in match mode.
func Route(ev Event, book *orderbook.OrderBook) []orderbook.Trade {
	switch e := ev.(type) {
	case AddOrder:
		return book.AddOrder(orderbook.Order{
			ID:        e.OrderRef,
			Side:      e.Side(),
			Price:     e.Price,
			Quantity:  orderbook.Quantity(e.Shares),
			Timestamp: e.Timestamp,
		})

	case OrderExecuted:
		book.DecreaseQty(e.OrderRef, orderbook.Quantity(e.ExecutedShares))
		return nil

	case OrderCancel:
		book.DecreaseQty(e.OrderRef, orderbook.Quantity(e.CanceledShares))
		return nil

	case OrderDelete:
		book.CancelOrder(e.OrderRef)
		return nil

	case OrderReplace:
		side, ok := book.SideOf(e.OriginalRef)
		if !ok {
			return nil
		}
		book.CancelOrder(e.OriginalRef)
		return book.AddOrder(orderbook.Order{
			ID:        e.NewRef,
			Side:      side,
			Price:     e.Price,
			Quantity:  orderbook.Quantity(e.Shares),
			Timestamp: e.Timestamp,
		})

	case SystemEvent, StockDirectory, Other:
		// Registry concerns; the book is untouched.
		return nil

	default:
		panic("itch: unhandled event type")
	}
}

// Routable reports whether ev mutates an order book.
func Routable(ev Event) bool {
	switch ev.Kind() {
	case KindAddOrder, KindOrderExecuted, KindOrderCancel, KindOrderDelete, KindOrderReplace:
		return true
	case KindSystemEvent, KindStockDirectory, KindOther:
		return false
	default:
		return false
	}
}
