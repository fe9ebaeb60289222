// Package protocol implements the Slice Submitter: the outbound client that
// turns a handler's (making, taking, limit_price) decision into a signed
// protocol-level limit order and submits it to the 1edge orderbook API.
//
// Unlike the teacher's two-layer Polymarket scheme (L1 EIP-712 bootstrap to
// derive L2 HMAC trading credentials), the 1edge API authenticates with a
// single static bearer API key (§6). Auth's only remaining job is the
// EIP-712 signature attached to each order record — or, for delegate-proxy
// and Gnosis Safe makers, a sentinel dummy signature, since authorization
// for those actually lives in the on-chain proxy registration step.
package protocol

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/1edge/keeper/internal/config"
	"github.com/1edge/keeper/pkg/types"
)

// dummySignature is the sentinel attached to orders whose maker is a
// delegate-proxy or Gnosis Safe contract (ERC-1271 signature validation),
// per the Open Question decision: gated strictly on SignatureType != EOA.
const dummySignature = "0x" + "00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000001b"

// Auth signs protocol order records for one EOA wallet.
type Auth struct {
	privateKey    *ecdsa.PrivateKey
	address       common.Address
	funderAddress common.Address
	sigType       types.SignatureType
}

// NewAuth builds an Auth from wallet configuration.
func NewAuth(cfg config.WalletConfig) (*Auth, error) {
	keyHex := strings.TrimPrefix(cfg.PrivateKey, "0x")
	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	funder := address
	if cfg.FunderAddress != "" {
		funder = common.HexToAddress(cfg.FunderAddress)
	}

	return &Auth{
		privateKey:    privateKey,
		address:       address,
		funderAddress: funder,
		sigType:       types.SignatureType(cfg.SignatureType),
	}, nil
}

// Address returns the signer's EOA address.
func (a *Auth) Address() common.Address { return a.address }

// FunderAddress returns the configured wallet funder address, or the
// signer's own EOA if none is configured. The Submitter does not use it:
// proxy slices take their maker address from the chain's proxy_address.
func (a *Auth) FunderAddress() common.Address { return a.funderAddress }

// SignatureType reports which signing scheme this wallet uses.
func (a *Auth) SignatureType() types.SignatureType { return a.sigType }

// orderTypedData builds the EIP-712 typed-data structure for an order
// record, shared by both hashing and signing so they always agree.
func orderTypedData(chainID *big.Int, verifyingContract common.Address, data types.ProtocolOrderData) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "receiver", Type: "address"},
				{Name: "makerAsset", Type: "address"},
				{Name: "takerAsset", Type: "address"},
				{Name: "makingAmount", Type: "uint256"},
				{Name: "takingAmount", Type: "uint256"},
				{Name: "makerTraits", Type: "uint256"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "1edgeLimitOrderProtocol",
			Version:           "1",
			ChainId:           (*ethmath.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":         data.Salt,
			"maker":        data.Maker,
			"receiver":     data.Receiver,
			"makerAsset":   data.MakerAsset,
			"takerAsset":   data.TakerAsset,
			"makingAmount": data.MakingAmount,
			"takingAmount": data.TakingAmount,
			"makerTraits":  data.MakerTraits,
		},
	}
}

// OrderHash computes the deterministic EIP-712 digest of an order record.
// This is independent of whether a real signature can be produced — the
// hash is returned whether or not the off-chain publish later succeeds, so
// a locally-known hash stays trackable on-chain (§4.6).
func OrderHash(chainID *big.Int, verifyingContract common.Address, data types.ProtocolOrderData) (string, error) {
	hash, _, err := apitypes.TypedDataAndHash(orderTypedData(chainID, verifyingContract, data))
	if err != nil {
		return "", fmt.Errorf("order typed data hash: %w", err)
	}
	return "0x" + common.Bytes2Hex(hash), nil
}

// Sign produces the order's maker signature: a real EIP-712 ECDSA
// signature for an EOA maker, or the dummy sentinel for a delegate-proxy
// or Safe maker (SignatureType != EOA), whose validity is instead asserted
// by the on-chain proxy registration step.
func (a *Auth) Sign(chainID *big.Int, verifyingContract common.Address, data types.ProtocolOrderData) (string, error) {
	if a.sigType != types.SigEOA {
		return dummySignature, nil
	}

	typedData := orderTypedData(chainID, verifyingContract, data)
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("order typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, a.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + common.Bytes2Hex(sig), nil
}
