package chain

// Asset identifies a SNIP-20 token contract on the ledger.
type Asset struct {
	Symbol   string
	Address  string
	CodeHash string
}

// The two tracked assets. Addresses and code hashes are properties of the
// deployed mainnet contracts.
var (
	AssetSSCRT = Asset{
		Symbol:   "sSCRT",
		Address:  "secret1k0jntykt7e4g3y88ltc60czgjuqdy4c9e8fzek",
		CodeHash: "af74387e276be8874f07bec3a87023ee49b0e7ebe08178c49d0a49c3c98ed60e",
	}
	AssetSUSDC = Asset{
		Symbol:   "sUSDC",
		Address:  "secret1vkq022x4q8t8kx9de3r84u669l65xnwf2lg3e6",
		CodeHash: "638a3e1d50175fbcb8373cf801565283e3eb23d88a9b7b7f99fcc5eb1e6b561e",
	}
)
