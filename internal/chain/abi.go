package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event names in eventsABI.
const (
	EventNewTokenCreated = "NewTokenCreated"
	EventBonded          = "Bonded"
	EventBuy             = "Buy"
	EventSell            = "Sell"
	EventPairCreated     = "PairCreated"
	EventTransfer        = "Transfer"
)

// eventsABI covers every log the indexer consumes. The token database emits
// NewTokenCreated and Bonded; bonding curves and the DEX factory share the
// Buy/Sell layout; tokens emit the ERC20 Transfer.
const eventsABI = `[
{"anonymous":false,"name":"NewTokenCreated","type":"event","inputs":[
 {"indexed":true,"name":"token","type":"address"},
 {"indexed":true,"name":"dev","type":"address"},
 {"indexed":false,"name":"bondingCurve","type":"address"},
 {"indexed":false,"name":"name","type":"string"},
 {"indexed":false,"name":"symbol","type":"string"}]},
{"anonymous":false,"name":"Bonded","type":"event","inputs":[
 {"indexed":true,"name":"token","type":"address"}]},
{"anonymous":false,"name":"Buy","type":"event","inputs":[
 {"indexed":true,"name":"user","type":"address"},
 {"indexed":true,"name":"token","type":"address"},
 {"indexed":false,"name":"quantityETH","type":"uint256"},
 {"indexed":false,"name":"quantityTokens","type":"uint256"}]},
{"anonymous":false,"name":"Sell","type":"event","inputs":[
 {"indexed":true,"name":"user","type":"address"},
 {"indexed":true,"name":"token","type":"address"},
 {"indexed":false,"name":"quantityETH","type":"uint256"},
 {"indexed":false,"name":"quantityTokens","type":"uint256"}]},
{"anonymous":false,"name":"PairCreated","type":"event","inputs":[
 {"indexed":true,"name":"token0","type":"address"},
 {"indexed":true,"name":"token1","type":"address"},
 {"indexed":false,"name":"pair","type":"address"},
 {"indexed":false,"name":"allPairsLength","type":"uint256"}]},
{"anonymous":false,"name":"Transfer","type":"event","inputs":[
 {"indexed":true,"name":"from","type":"address"},
 {"indexed":true,"name":"to","type":"address"},
 {"indexed":false,"name":"value","type":"uint256"}]}
]`

// ParseABI returns the parsed event ABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(eventsABI))
}
