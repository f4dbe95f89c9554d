// Package evm provides concrete venue capabilities backed by on-chain
// routers, one adapter per protocol variant.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// txSender holds the signing state shared by the adapters.
type txSender struct {
	ec       *ethclient.Client
	priv     *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
}

func newTxSender(ec *ethclient.Client, pkHex string, gasLimit uint64) (*txSender, error) {
	s := &txSender{ec: ec, gasLimit: gasLimit}
	if s.gasLimit == 0 {
		s.gasLimit = 400_000
	}
	if strings.TrimSpace(pkHex) != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(pkHex), "0x"))
		if err != nil {
			return nil, fmt.Errorf("bad private key: %w", err)
		}
		s.priv = key
		s.from = crypto.PubkeyToAddress(key.PublicKey)
		s.chainID, err = ec.ChainID(context.Background())
		if err != nil {
			return nil, fmt.Errorf("get chain id: %w", err)
		}
	}
	return s, nil
}

func (s *txSender) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return s.ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

func (s *txSender) send(ctx context.Context, to common.Address, data []byte) (string, error) {
	if s.priv == nil {
		return "", fmt.Errorf("no private key configured")
	}
	tip, err := s.ec.SuggestGasTipCap(ctx)
	if err != nil || tip == nil {
		tip = big.NewInt(2_000_000_000)
	}
	var baseFee *big.Int
	if h, _ := s.ec.HeaderByNumber(ctx, nil); h != nil && h.BaseFee != nil {
		baseFee = new(big.Int).Set(h.BaseFee)
	} else if sp, _ := s.ec.SuggestGasPrice(ctx); sp != nil {
		baseFee = sp
	} else {
		baseFee = big.NewInt(5_000_000_000)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)

	nonce, err := s.ec.PendingNonceAt(ctx, s.from)
	if err != nil {
		return "", err
	}
	gas, err := s.ec.EstimateGas(ctx, ethereum.CallMsg{From: s.from, To: &to, Data: data})
	if err != nil || gas == 0 {
		gas = s.gasLimit
	}

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		To:        &to,
		Gas:       gas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
		Value:     big.NewInt(0),
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(s.chainID), s.priv)
	if err != nil {
		return "", err
	}
	if err := s.ec.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}
