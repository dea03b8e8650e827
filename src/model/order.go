package model

// Order is a constructed market-order request. Direction is encoded in
// the sign of Units (negative = sell). Stop-loss and take-profit are
// expressed as broker-native price distances, already converted from the
// session's pip settings by the sizer. Value object; never mutated after
// submission.
type Order struct {
	Instrument         string  `json:"instrument"`
	Units              int     `json:"units"`
	StopLossDistance   float64 `json:"stop_loss_distance"`
	TakeProfitDistance float64 `json:"take_profit_distance"`
	TimeInForce        string  `json:"time_in_force"`
	ClientID           string  `json:"client_id"`
}

// OrderAck is the broker's confirmation of a filled order.
type OrderAck struct {
	OrderID string  `json:"order_id"`
	TradeID string  `json:"trade_id"`
	Price   float64 `json:"price"`
}
