package server

// JSON shapes of the HTTP API. Byte fields travel hex encoded.

type InfoResponse struct {
	Backend     string `json:"backend"`
	IngressKeys int    `json:"ingress_keys"`
}

type IngressKeyResponse struct {
	IngressKey     string `json:"ingress_key"`
	StartBlock     uint64 `json:"start_block"`
	Decommissioned bool   `json:"decommissioned"`
	LastScanned    int64  `json:"last_scanned"`
}

type InvocationResponse struct {
	InvocationID   string `json:"invocation_id"`
	Primary        bool   `json:"primary"`
	StartBlock     uint64 `json:"start_block"`
	LastActive     int64  `json:"last_active"`
	Decommissioned bool   `json:"decommissioned"`
}

type BlockRangeResponse struct {
	HighWater uint64   `json:"high_water"`
	Ingested  bool     `json:"ingested"`
	Gaps      []uint64 `json:"gaps"`
}

type MissedRangeResponse struct {
	StartBlock uint64 `json:"start_block"`
	EndBlock   uint64 `json:"end_block"`
}

type StatusResponse struct {
	Key          IngressKeyResponse    `json:"key"`
	Invocations  []InvocationResponse  `json:"invocations"`
	BlockRange   BlockRangeResponse    `json:"block_range"`
	MissedRanges []MissedRangeResponse `json:"missed_ranges"`
}

type RngRecordResponse struct {
	AccountPubkey string `json:"account_pubkey"`
	InvocationID  string `json:"invocation_id"`
	StartBlock    uint64 `json:"start_block"`
	State         string `json:"state"`
}

type OutputsRequest struct {
	SearchKeys []string `json:"search_keys"`
	StartBlock uint64   `json:"start_block"`
	EndBlock   uint64   `json:"end_block"`
}

type OutputResponse struct {
	SearchKey  string `json:"search_key"`
	Payload    string `json:"payload"`
	BlockIndex uint64 `json:"block_index"`
	Timestamp  int64  `json:"timestamp"`
}
