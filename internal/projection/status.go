package projection

import "github.com/shopspring/decimal"

// ResolveStatus decides the terminal status of a concluded auction. An
// absent sold amount always yields ReserveNotMet, even with a zero reserve.
func ResolveStatus(soldAmount *decimal.Decimal, reservePrice decimal.Decimal) Status {
	if soldAmount != nil && soldAmount.GreaterThan(reservePrice) {
		return StatusFinished
	}
	return StatusReserveNotMet
}
