package evm

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const clRouterABI = `[
 {"inputs":[{"components":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMinimum","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"internalType":"struct ISwapRouter.ExactInputSingleParams","name":"params","type":"tuple"}],"name":"exactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"payable","type":"function"}
]`

// Concentrated adapts a v3-style single-pool router. The minimal
// router interface has no view-mode quote, so Quote returns a
// zero-amount placeholder; the aggregator carries it through and the
// selector never prefers it over a positive quote.
type Concentrated struct {
	sender         *txSender
	abi            abi.ABI
	router         common.Address
	defaultFeeTier uint32
}

func NewConcentrated(ec *ethclient.Client, router common.Address, pkHex string, gasLimit uint64, defaultFeeTier uint32) (*Concentrated, error) {
	parsed, err := abi.JSON(strings.NewReader(clRouterABI))
	if err != nil {
		return nil, err
	}
	s, err := newTxSender(ec, pkHex, gasLimit)
	if err != nil {
		return nil, err
	}
	if defaultFeeTier == 0 {
		defaultFeeTier = 3000
	}
	return &Concentrated{sender: s, abi: parsed, router: router, defaultFeeTier: defaultFeeTier}, nil
}

func (v *Concentrated) Quote(ctx context.Context, _, _ common.Address, _ *big.Int) (*big.Int, error) {
	return new(big.Int), nil
}

func (v *Concentrated) Swap(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, minOut *big.Int, recipient common.Address, deadline time.Time, feeTier uint32) (*big.Int, error) {
	if feeTier == 0 {
		feeTier = v.defaultFeeTier
	}
	params := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		Fee               *big.Int
		Recipient         common.Address
		Deadline          *big.Int
		AmountIn          *big.Int
		AmountOutMinimum  *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               big.NewInt(int64(feeTier)),
		Recipient:         recipient,
		Deadline:          big.NewInt(deadline.Unix()),
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	}
	data, err := v.abi.Pack("exactInputSingle", params)
	if err != nil {
		return nil, err
	}
	if _, err := v.sender.send(ctx, v.router, data); err != nil {
		return nil, err
	}
	return new(big.Int), nil
}
