package solana

// VerifyRequest carries the attested signature and the preimage fields the
// on-chain program rehashes before checking the signature.
type VerifyRequest struct {
	Program        string `json:"program"`
	SealHash       string `json:"seal_hash"`
	Signature      string `json:"signature"`
	AttestedPubKey string `json:"attested_public_key"`
	Recipient      string `json:"recipient"`
	SourceChainID  uint16 `json:"source_chain_id"`
	SourceContract string `json:"source_contract"`
	TokenID        string `json:"token_id"`
}

type verifyResponse struct {
	TxSignature string        `json:"tx_signature"`
	Error       *programError `json:"error,omitempty"`
}

// MintRequest mints the reborn asset for an already verified seal.
type MintRequest struct {
	Program  string `json:"program"`
	SealHash string `json:"seal_hash"`
	Name     string `json:"name"`
	URI      string `json:"uri"`
}

type mintResponse struct {
	TxSignature  string        `json:"tx_signature"`
	AssetAddress string        `json:"asset_address"`
	Error        *programError `json:"error,omitempty"`
}

type statusRequest struct {
	Program  string `json:"program"`
	SealHash string `json:"seal_hash"`
}

type statusResponse struct {
	Verified     bool          `json:"verified"`
	AssetAddress string        `json:"asset_address"`
	Error        *programError `json:"error,omitempty"`
}

type programError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SealStatus is the destination program's view of one seal.
type SealStatus struct {
	Verified     bool
	AssetAddress string
}

// Error codes surfaced by the gateway, one per program error.
const (
	codeInvalidSignature = "INVALID_SIGNATURE"
	codeAlreadyVerified  = "ALREADY_VERIFIED"
	codeSupplyExhausted  = "SUPPLY_EXHAUSTED"
	codePaused           = "PAUSED"
	codeNotVerified      = "NOT_VERIFIED"
	codeAlreadyMinted    = "ALREADY_MINTED"
	codeSealNotFound     = "SEAL_NOT_FOUND"
)
