package model

// Tick is one price observation produced by a data source node.
type Tick struct {
	Timestamp int64 // unix milliseconds
	Symbol    string
	Price     float64
}
