package db

import (
	"time"

	"github.com/uptrace/bun"
)

// Status represents the current state of a seal migration workflow
type Status string

const (
	StatusSealed    Status = "sealed"
	StatusSigning   Status = "signing"
	StatusSigned    Status = "signed"
	StatusVerifying Status = "verifying"
	StatusVerified  Status = "verified"
	StatusMinting   Status = "minting"
	StatusMinted    Status = "minted"
	StatusClosing   Status = "closing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// AllStatuses lists every workflow status, in pipeline order.
var AllStatuses = []Status{
	StatusSealed, StatusSigning, StatusSigned, StatusVerifying, StatusVerified,
	StatusMinting, StatusMinted, StatusClosing, StatusCompleted, StatusFailed,
}

// next maps each status to its single forward successor.
var next = map[Status]Status{
	StatusSealed:    StatusSigning,
	StatusSigning:   StatusSigned,
	StatusSigned:    StatusVerifying,
	StatusVerifying: StatusVerified,
	StatusVerified:  StatusMinting,
	StatusMinting:   StatusMinted,
	StatusMinted:    StatusClosing,
	StatusClosing:   StatusCompleted,
}

// Terminal reports whether no further transitions are allowed from s
// (completed, or failed once the retry budget is spent).
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// CanTransition reports whether the state machine permits from -> to.
// Forward one step only, plus failure from any non-terminal state, plus
// retry out of failed back into the state that failed.
func CanTransition(from, to Status) bool {
	if from == StatusFailed {
		return to != StatusCompleted && to != StatusFailed
	}
	if to == StatusFailed {
		return !from.Terminal()
	}
	return next[from] == to
}

// SealRecord is the source of truth for one migration attempt. The seal_hash
// primary key is the immutable join key across all three ledgers; rows are
// never deleted.
type SealRecord struct {
	bun.BaseModel `bun:"table:seal_records"`

	SealHash         string    `json:"seal_hash" bun:"seal_hash,pk,type:varchar(66)"`
	Status           Status    `json:"status" bun:"status,notnull,type:varchar(16)"`
	SourceChainID    uint16    `json:"source_chain_id" bun:"source_chain_id,notnull"`
	DestChainID      uint16    `json:"dest_chain_id" bun:"dest_chain_id,notnull"`
	SourceContract   []byte    `json:"source_contract" bun:"source_contract,notnull,type:bytea"`
	TokenID          []byte    `json:"token_id" bun:"token_id,notnull,type:bytea"`
	Nonce            int64     `json:"nonce" bun:"nonce,notnull,use_zero"`
	AttestedPubKey   string    `json:"attested_public_key" bun:"attested_public_key,notnull,type:varchar(66)"`
	Recipient        string    `json:"recipient" bun:"recipient,notnull,type:varchar(66)"`
	CollectionName   string    `json:"collection_name" bun:"collection_name,type:varchar(32)"`
	TokenURI         string    `json:"token_uri" bun:"token_uri,type:varchar(512)"`
	Signature        string    `json:"signature,omitempty" bun:"signature,type:varchar(130)"`
	DestinationAsset string    `json:"destination_asset_address,omitempty" bun:"destination_asset_address,type:varchar(66)"`
	FailedFrom       Status    `json:"failed_from,omitempty" bun:"failed_from,type:varchar(16)"`
	Error            *string   `json:"error,omitempty" bun:"error,type:text"`
	CreatedAt        time.Time `json:"created_at" bun:"created_at,notnull,nullzero,default:current_timestamp"`
	UpdatedAt        time.Time `json:"updated_at" bun:"updated_at,notnull,nullzero,default:current_timestamp"`
}

// CursorState tracks the durable event-source cursor per chain. Persisted
// once per page, so a crash mid-page re-delivers at most one page.
type CursorState struct {
	bun.BaseModel `bun:"table:cursor_state"`

	Chain     string    `json:"chain" bun:"chain,pk,type:varchar(32)"`
	LastSeq   int64     `json:"last_seq" bun:"last_seq,notnull,use_zero"`
	UpdatedAt time.Time `json:"updated_at" bun:"updated_at,notnull,nullzero,default:current_timestamp"`
}
