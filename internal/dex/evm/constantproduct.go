package evm

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const cpRouterABI = `[
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

// ConstantProduct adapts a v2-style path router to the uniform venue
// capabilities.
type ConstantProduct struct {
	sender *txSender
	abi    abi.ABI
	router common.Address
}

func NewConstantProduct(ec *ethclient.Client, router common.Address, pkHex string, gasLimit uint64) (*ConstantProduct, error) {
	parsed, err := abi.JSON(strings.NewReader(cpRouterABI))
	if err != nil {
		return nil, err
	}
	s, err := newTxSender(ec, pkHex, gasLimit)
	if err != nil {
		return nil, err
	}
	return &ConstantProduct{sender: s, abi: parsed, router: router}, nil
}

func (v *ConstantProduct) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	path := []common.Address{tokenIn, tokenOut}
	data, _ := v.abi.Pack("getAmountsOut", amountIn, path)
	raw, err := v.sender.call(ctx, v.router, data)
	if err != nil {
		return nil, err
	}
	outs, err := v.abi.Methods["getAmountsOut"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, errors.New("decode getAmountsOut")
	}
	amounts := outs[0].([]*big.Int)
	if len(amounts) < 2 {
		return nil, errors.New("bad amounts length")
	}
	return amounts[len(amounts)-1], nil
}

func (v *ConstantProduct) Swap(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, minOut *big.Int, recipient common.Address, deadline time.Time, _ uint32) (*big.Int, error) {
	path := []common.Address{tokenIn, tokenOut}
	data, _ := v.abi.Pack("swapExactTokensForTokens", amountIn, minOut, path, recipient, big.NewInt(deadline.Unix()))
	if _, err := v.sender.send(ctx, v.router, data); err != nil {
		return nil, err
	}
	// The executor measures its own balance delta; the return value
	// here is advisory only.
	return new(big.Int), nil
}
