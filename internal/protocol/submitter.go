package protocol

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/1edge/keeper/internal/config"
	"github.com/1edge/keeper/pkg/types"
)

// Submitter ties signing, optional delegate-proxy registration, and REST
// publish into the single "submit one slice" operation described by
// §4.6: build the order record, hash it locally, sign or register it
// depending on the maker's SignatureType, publish it, and return the
// locally-computed hash regardless of publish outcome.
type Submitter struct {
	auth      *Auth
	client    *Client
	registrar *ProxyRegistrar // nil for plain EOA makers
	chainID   *big.Int
	proxy     common.Address
}

// NewSubmitter wires an Auth, REST Client, and optional ProxyRegistrar
// (present only when cfg.Wallet.SignatureType != EOA) into one Submitter.
func NewSubmitter(cfg config.ChainConfig, auth *Auth, client *Client, chainID *big.Int) (*Submitter, error) {
	s := &Submitter{auth: auth, client: client, chainID: chainID}

	if auth.SignatureType() != types.SigEOA {
		if cfg.ProxyAddress == "" {
			return nil, fmt.Errorf("signature_type %d requires chains.*.proxy_address", auth.SignatureType())
		}
		s.proxy = common.HexToAddress(cfg.ProxyAddress)
		registrar, err := NewProxyRegistrar(context.Background(), cfg.RPCURL, s.proxy, auth, chainID)
		if err != nil {
			return nil, fmt.Errorf("new proxy registrar: %w", err)
		}
		s.registrar = registrar
	}

	return s, nil
}

// MakerAddress returns the hex address slices are submitted under: the
// delegate-proxy address for non-EOA makers, otherwise the signer's own
// EOA. The Slice Monitor polls standing orders under this same address.
func (s *Submitter) MakerAddress() string {
	if s.registrar != nil {
		return s.proxy.Hex()
	}
	return s.auth.Address().Hex()
}

// SubmitSlice builds, signs, (optionally) registers, and publishes one
// slice order. It returns the order's deterministic hash even when the
// publish step fails, matching the "track on-chain regardless of publish
// outcome" rule — the caller inspects the returned error only to decide
// retry/backoff classification (*types.SubmitError).
func (s *Submitter) SubmitSlice(ctx context.Context, chainNumericID int64, slice SliceOrder) (string, error) {
	slice.UseProxy = s.registrar != nil
	if slice.UseProxy {
		slice.Maker = s.proxy.Hex()
	} else {
		slice.Maker = s.auth.Address().Hex()
	}

	data, err := BuildOrderData(slice)
	if err != nil {
		return "", fmt.Errorf("build order data: %w", err)
	}

	verifyingContract := s.proxy
	if !slice.UseProxy {
		verifyingContract = s.auth.Address()
	}

	hash, err := OrderHash(s.chainID, verifyingContract, data)
	if err != nil {
		return "", fmt.Errorf("compute order hash: %w", err)
	}

	if s.registrar != nil {
		hashBytes, err := bytes32FromHex(hash)
		if err != nil {
			return hash, fmt.Errorf("decode order hash: %w", err)
		}
		already, err := s.registrar.IsRegistered(ctx, hashBytes)
		if err != nil {
			return hash, fmt.Errorf("check proxy registration: %w", err)
		}
		if !already {
			if _, err := s.registrar.Register(ctx, hashBytes); err != nil {
				return hash, fmt.Errorf("register order on proxy: %w", err)
			}
		}
	}

	signature, err := s.auth.Sign(s.chainID, verifyingContract, data)
	if err != nil {
		return hash, fmt.Errorf("sign order: %w", err)
	}

	return s.client.Submit(ctx, chainNumericID, data, signature, hash)
}

// Close releases the registrar's chain RPC connection, if one was opened.
func (s *Submitter) Close() {
	if s.registrar != nil {
		s.registrar.Close()
	}
}
