package seal

// Chain IDs as registered in the destination program. These are protocol
// constants, not configuration.
const (
	ChainEthereum uint16 = 1
	ChainSui      uint16 = 2
	ChainSolana   uint16 = 3
	ChainNear     uint16 = 4
	ChainBitcoin  uint16 = 5
)

var chainNames = map[uint16]string{
	ChainEthereum: "ethereum",
	ChainSui:      "sui",
	ChainSolana:   "solana",
	ChainNear:     "near",
	ChainBitcoin:  "bitcoin",
}

// ChainName returns a human-readable name for a chain ID, or "unknown".
func ChainName(id uint16) string {
	if name, ok := chainNames[id]; ok {
		return name
	}
	return "unknown"
}

// KnownChain reports whether the chain ID is registered.
func KnownChain(id uint16) bool {
	_, ok := chainNames[id]
	return ok
}
