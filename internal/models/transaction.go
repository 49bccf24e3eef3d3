package models

// Transaction represents a value transfer between two addresses
type Transaction struct {
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Sender        string  `json:"sender"`
	Recipient     string  `json:"recipient"`
}
