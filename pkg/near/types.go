package near

// SealEvent is a deposit event emitted by the seal-initiator contract.
// The validate tags mirror the contract's own field limits, so anything
// the contract would have rejected is dropped at admission.
type SealEvent struct {
	Seq            int64  `json:"seq" validate:"gte=0"`
	SealHash       string `json:"seal_hash" validate:"required,len=66,startswith=0x"`
	SourceChainID  uint16 `json:"source_chain_id" validate:"required"`
	DestChainID    uint16 `json:"dest_chain_id" validate:"required"`
	SourceContract string `json:"source_contract" validate:"required,max=64"`
	TokenID        string `json:"token_id" validate:"required,max=64"`
	AttestedPubKey string `json:"attested_public_key" validate:"required,len=66,startswith=0x"`
	Recipient      string `json:"recipient" validate:"required,max=64"`
	Nonce          uint64 `json:"nonce"`
	CollectionName string `json:"collection_name" validate:"max=32"`
	TokenURI       string `json:"token_uri" validate:"max=512"`
}

type eventsRequest struct {
	Contract string `json:"contract"`
	AfterSeq int64  `json:"after_seq"`
	Limit    int    `json:"limit"`
}

type eventsResponse struct {
	Events []SealEvent   `json:"events"`
	Error  *gatewayError `json:"error,omitempty"`
}

type completeRequest struct {
	Contract  string `json:"contract"`
	SealHash  string `json:"seal_hash"`
	DestAsset string `json:"dest_asset_address"`
}

type completeResponse struct {
	Status string        `json:"status"`
	Error  *gatewayError `json:"error,omitempty"`
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned by the origin gateway, mirroring the contract errors.
const (
	codeAlreadyCompleted = "ALREADY_COMPLETED"
	codeNotFound         = "NOT_FOUND"
)
