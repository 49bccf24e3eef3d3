package models

// AddressData summarises the committed activity of an address
type AddressData struct {
	Address      string        `json:"address"`
	Balance      float64       `json:"addressBalance"`
	Transactions []Transaction `json:"addressTransactions"`
}
