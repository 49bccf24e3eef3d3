package models

// NodeInfo identifies a node and the protocol version it speaks
type NodeInfo struct {
	NodeID  string `json:"address"`
	NodeURL string `json:"nodeUrl"`
	Version string `json:"version"`
}

// TransactionRequest asks a node to create and broadcast a transaction
type TransactionRequest struct {
	Amount    float64 `json:"amount"`
	Sender    string  `json:"sender" binding:"required"`
	Recipient string  `json:"recipient" binding:"required"`
}

// ReceiveBlockRequest carries a block announced by a peer
type ReceiveBlockRequest struct {
	NewBlock Block `json:"newBlock"`
}

// ReceiveBlockResponse tells the announcing peer whether its block was accepted
type ReceiveBlockResponse struct {
	Note     string `json:"note"`
	Accepted bool   `json:"accepted"`
	NewBlock Block  `json:"newBlock"`
}

// RegisterNodeRequest announces a single node
type RegisterNodeRequest struct {
	NewNodeURL string `json:"newNodeUrl" binding:"required"`
}

// RegisterNodesBulkRequest announces every node of a network
type RegisterNodesBulkRequest struct {
	AllNetworkNodes []string `json:"allNetworkNodes"`
}
