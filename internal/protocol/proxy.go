package protocol

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// delegateProxyABI is the minimal interface the Slice Submitter needs
// from a delegate-proxy maker contract: registering an order hash so the
// contract's ERC-1271 isValidSignature check accepts it later, and
// reading back whether a hash is already registered (used to make
// registration idempotent across supervisor restarts).
const delegateProxyABI = `[
	{"type":"function","name":"registerOrder","inputs":[{"name":"orderHash","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"isOrderRegistered","inputs":[{"name":"orderHash","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"}
]`

// ProxyRegistrar registers slice order hashes on a maker's delegate-proxy
// contract before they are published off-chain, per §4.6 step 2. Only
// wallets with SignatureType != EOA (proxy or Gnosis Safe makers) need
// this step — plain EOA makers sign the order directly and skip it.
type ProxyRegistrar struct {
	client       *ethclient.Client
	contractABI  abi.ABI
	proxyAddress common.Address
	signer       *Auth
	chainID      *big.Int
}

// NewProxyRegistrar dials the chain RPC and binds the delegate-proxy
// contract ABI, ready to register order hashes for the given signer.
func NewProxyRegistrar(ctx context.Context, rpcURL string, proxyAddress common.Address, signer *Auth, chainID *big.Int) (*ProxyRegistrar, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(delegateProxyABI))
	if err != nil {
		return nil, fmt.Errorf("parse delegate proxy abi: %w", err)
	}
	return &ProxyRegistrar{
		client:       client,
		contractABI:  parsed,
		proxyAddress: proxyAddress,
		signer:       signer,
		chainID:      chainID,
	}, nil
}

// Close releases the underlying RPC connection.
func (r *ProxyRegistrar) Close() { r.client.Close() }

// IsRegistered reports whether the proxy contract already knows about
// orderHash, so Register can skip a redundant transaction on retry after
// a supervisor restart.
func (r *ProxyRegistrar) IsRegistered(ctx context.Context, orderHash [32]byte) (bool, error) {
	bound := bind.NewBoundContract(r.proxyAddress, r.contractABI, r.client, r.client, r.client)
	var out []interface{}
	err := bound.Call(&bind.CallOpts{Context: ctx}, &out, "isOrderRegistered", orderHash)
	if err != nil {
		return false, fmt.Errorf("call isOrderRegistered: %w", err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("isOrderRegistered: unexpected output shape")
	}
	registered, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isOrderRegistered: unexpected output type")
	}
	return registered, nil
}

// Register submits the registerOrder transaction for orderHash, signed
// by the same EOA that would otherwise have signed the order directly.
// It blocks only for transaction submission, not confirmation — the
// caller proceeds to off-chain publish once the transaction is sent,
// matching the "publish regardless of downstream outcome" rule of §4.6.
func (r *ProxyRegistrar) Register(ctx context.Context, orderHash [32]byte) (common.Hash, error) {
	data, err := r.contractABI.Pack("registerOrder", orderHash)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack registerOrder: %w", err)
	}

	nonce, err := r.client.PendingNonceAt(ctx, r.signer.Address())
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := r.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit, err := r.client.EstimateGas(ctx, ethereum.CallMsg{
		From: r.signer.Address(),
		To:   &r.proxyAddress,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, r.proxyAddress, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(r.chainID), r.signer.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign registration tx: %w", err)
	}
	if err := r.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("send registration tx: %w", err)
	}
	return signedTx.Hash(), nil
}

// bytes32FromHex converts a "0x"-prefixed 32-byte hex hash (as produced
// by OrderHash) into the fixed array the proxy contract ABI expects.
func bytes32FromHex(hexHash string) ([32]byte, error) {
	var out [32]byte
	b := common.FromHex(hexHash)
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32-byte hash, got %d bytes", len(b))
	}
	copy(out[:], b)
	return out, nil
}
