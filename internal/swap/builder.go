// Package swap builds the unsigned SNIP-20 send message that routes sUSDC
// through the Shade router into sSCRT. The route, code hashes and minimum
// return are compile-time constants of the deployed contracts; only the
// amount and the sending owner vary.
package swap

import (
	"encoding/base64"
	"encoding/json"

	"github.com/aquatrade/backend/internal/core"
)

const (
	// SUSDCAddress is the funding-asset contract the outer send targets.
	SUSDCAddress  = "secret1vkq022x4q8t8kx9de3r84u669l65xnwf2lg3e6"
	SUSDCCodeHash = "638a3e1d50175fbcb8373cf801565283e3eb23d88a9b7b7f99fcc5eb1e6b561e"

	// RouterAddress receives the tokens and executes the swap route.
	RouterAddress = "secret1pjhdug87nxzv0esxasmeyfsucaj98pw4334wyc"

	// DefaultAmount is the fixed notional: 0.3 sUSDC in base units.
	DefaultAmount = "300000"

	// expectedReturn is the fixed minimum-return. Pricing and slippage are
	// deliberately out of scope; the route is a constant.
	expectedReturn = "1"

	pairCodeHash = "e88165353d5d7e7847f2c84134c3f7871b2eee684ffac9fcf8d99a4da39dc2f2"

	// padding obscures the message length on the confidential ledger.
	padding = "Iq7w0EzEpkt"
)

// routeHops are the three pool contracts the swap passes through, in order.
// These must stay in lockstep with the route the deployed router expects;
// changing a hop changes the bytes the wallet signs.
var routeHops = []hop{
	{Addr: "secret1qz57pea4k3ndmjpy6tdjcuq4tzrvjn0aphca0k", CodeHash: pairCodeHash},
	{Addr: "secret1a6efnz9y702pctmnzejzkjdyq0m62jypwsfk92", CodeHash: pairCodeHash},
	{Addr: "secret1y6w45fwg9ln9pxd6qys8ltjlntu9xa4f2de7sp", CodeHash: pairCodeHash},
}

type hop struct {
	Addr     string `json:"addr"`
	CodeHash string `json:"code_hash"`
}

type swapRoute struct {
	SwapTokensForExact struct {
		ExpectedReturn string `json:"expected_return"`
		Path           []hop  `json:"path"`
	} `json:"swap_tokens_for_exact"`
}

// sendMsg is the outer SNIP-20 send instruction. The inner swap route rides
// along base64-encoded in Msg.
type sendMsg struct {
	Send struct {
		Owner     string `json:"owner"`
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
		Msg       string `json:"msg"`
		Padding   string `json:"padding"`
	} `json:"send"`
}

// BuildSwapMessage assembles the unsigned contract call for the given amount
// and owner. Pure and total: identical inputs produce byte-identical output,
// which matters because the wallet must sign exactly what was previewed.
func BuildSwapMessage(amount, owner string) core.TradeIntent {
	var route swapRoute
	route.SwapTokensForExact.ExpectedReturn = expectedReturn
	route.SwapTokensForExact.Path = routeHops

	// Marshaling a struct (not a map) keeps field order fixed.
	routeJSON, _ := json.Marshal(route)

	var msg sendMsg
	msg.Send.Owner = owner
	msg.Send.Recipient = RouterAddress
	msg.Send.Amount = amount
	msg.Send.Msg = base64.StdEncoding.EncodeToString(routeJSON)
	msg.Send.Padding = padding

	return core.TradeIntent{
		Sender:          owner,
		ContractAddress: SUSDCAddress,
		CodeHash:        SUSDCCodeHash,
		Msg:             msg,
	}
}
