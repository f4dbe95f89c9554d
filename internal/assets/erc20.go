package assets

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc20ABI = `[
 {"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"internalType":"address","name":"from","type":"address"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"transferFrom","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

// ERC20 binds the capability to one token contract and one signing
// account.
type ERC20 struct {
	ec       *ethclient.Client
	abi      abi.ABI
	token    common.Address
	gasLimit uint64
	priv     *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
}

func NewERC20(ec *ethclient.Client, token common.Address, pkHex string, gasLimit uint64) (*ERC20, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(pkHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("bad private key: %w", err)
	}
	chainID, err := ec.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if gasLimit == 0 {
		gasLimit = 120_000
	}
	return &ERC20{
		ec:       ec,
		abi:      parsed,
		token:    token,
		gasLimit: gasLimit,
		priv:     key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
	}, nil
}

func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, _ := t.abi.Pack("balanceOf", owner)
	raw, err := t.ec.CallContract(ctx, ethereum.CallMsg{To: &t.token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	outs, err := t.abi.Methods["balanceOf"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, errors.New("decode balanceOf")
	}
	return outs[0].(*big.Int), nil
}

func (t *ERC20) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	data, _ := t.abi.Pack("transfer", to, amount)
	return t.send(ctx, data)
}

func (t *ERC20) TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error {
	data, _ := t.abi.Pack("transferFrom", from, to, amount)
	return t.send(ctx, data)
}

func (t *ERC20) Approve(ctx context.Context, spender common.Address, amount *big.Int) error {
	data, _ := t.abi.Pack("approve", spender, amount)
	return t.send(ctx, data)
}

func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	data, _ := t.abi.Pack("symbol")
	raw, err := t.ec.CallContract(ctx, ethereum.CallMsg{To: &t.token, Data: data}, nil)
	if err != nil {
		return "", err
	}
	outs, err := t.abi.Methods["symbol"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return "", errors.New("decode symbol")
	}
	return outs[0].(string), nil
}

func (t *ERC20) send(ctx context.Context, data []byte) error {
	tip, err := t.ec.SuggestGasTipCap(ctx)
	if err != nil || tip == nil {
		tip = big.NewInt(2_000_000_000)
	}
	var baseFee *big.Int
	if h, _ := t.ec.HeaderByNumber(ctx, nil); h != nil && h.BaseFee != nil {
		baseFee = new(big.Int).Set(h.BaseFee)
	} else if sp, _ := t.ec.SuggestGasPrice(ctx); sp != nil {
		baseFee = sp
	} else {
		baseFee = big.NewInt(5_000_000_000)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)

	nonce, err := t.ec.PendingNonceAt(ctx, t.from)
	if err != nil {
		return err
	}
	gas, err := t.ec.EstimateGas(ctx, ethereum.CallMsg{From: t.from, To: &t.token, Data: data})
	if err != nil || gas == 0 {
		gas = t.gasLimit
	}

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   t.chainID,
		Nonce:     nonce,
		To:        &t.token,
		Gas:       gas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
		Value:     big.NewInt(0),
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(t.chainID), t.priv)
	if err != nil {
		return err
	}
	return t.ec.SendTransaction(ctx, signed)
}

// ERC20Provider caches one ERC20 binding per token.
type ERC20Provider struct {
	ec       *ethclient.Client
	pkHex    string
	gasLimit uint64

	mu    sync.Mutex
	cache map[common.Address]*ERC20
}

func NewERC20Provider(ec *ethclient.Client, pkHex string, gasLimit uint64) *ERC20Provider {
	return &ERC20Provider{
		ec:       ec,
		pkHex:    pkHex,
		gasLimit: gasLimit,
		cache:    make(map[common.Address]*ERC20, 8),
	}
}

func (p *ERC20Provider) Asset(token common.Address) Asset {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.cache[token]; ok {
		return a
	}
	a, err := NewERC20(p.ec, token, p.pkHex, p.gasLimit)
	if err != nil {
		// Surface the construction failure at call time.
		return &brokenAsset{err: err}
	}
	p.cache[token] = a
	return a
}

type brokenAsset struct{ err error }

func (b *brokenAsset) BalanceOf(context.Context, common.Address) (*big.Int, error) {
	return nil, b.err
}
func (b *brokenAsset) Transfer(context.Context, common.Address, *big.Int) error { return b.err }
func (b *brokenAsset) TransferFrom(context.Context, common.Address, common.Address, *big.Int) error {
	return b.err
}
func (b *brokenAsset) Approve(context.Context, common.Address, *big.Int) error { return b.err }
func (b *brokenAsset) Symbol(context.Context) (string, error)                  { return "", b.err }
