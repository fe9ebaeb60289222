package protocol

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/1edge/keeper/pkg/types"
)

// priceAdjustPct and spreadClampFrac implement the limit-price
// derivation formula of §4.6: the reference limit sits 0.025% off mid in
// the direction that favors a fast fill, but never further from mid than
// one quarter of the current bid/ask spread.
var (
	priceAdjustPct    = decimal.RequireFromString("0.00025")
	spreadClampFrac   = decimal.RequireFromString("4")
)

// NewSalt returns a random 256-bit order salt, hex-encoded with a 0x
// prefix, as required by the protocol order record.
func NewSalt() (string, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return "0x" + n.Text(16), nil
}

// DeriveLimitPrice computes the slice's limit price from the current
// index snapshot and the side the maker is selling into. A sell slice
// prices slightly above mid (to avoid crossing the spread), a buy slice
// slightly below, each clamped to within spread/4 of mid so a slow-moving
// market doesn't chase the price further than the book can absorb.
func DeriveLimitPrice(snapshot types.IndexSnapshot, side types.Side) decimal.Decimal {
	mid := snapshot.Mid
	offset := mid.Mul(priceAdjustPct)
	spread := snapshot.Ask.Sub(snapshot.Bid)
	clamp := spread.Div(spreadClampFrac)

	if side == types.SideSell {
		limit := mid.Add(offset)
		if cap := mid.Add(clamp); limit.GreaterThan(cap) {
			limit = cap
		}
		return limit
	}

	limit := mid.Sub(offset)
	if floor := mid.Sub(clamp); limit.LessThan(floor) {
		limit = floor
	}
	return limit
}

// SliceOrder is the fully-resolved input to BuildOrderData: a handler's
// trigger decision reduced to the fields the on-chain order record needs.
type SliceOrder struct {
	Maker        string // delegate-proxy address if configured, else the EOA
	Receiver     string // parent order's owner
	MakerAsset   string
	TakerAsset   string
	MakingAmount decimal.Decimal // already in base units (atomic)
	TakingAmount decimal.Decimal // already in base units (atomic)
	UseProxy     bool            // true when the maker is a delegate-proxy/Safe contract
}

// BuildOrderData assembles the protocol order record for one slice,
// generating a fresh salt and encoding maker traits per §4.6: partial and
// multiple fills always allowed, pre/post-interaction hooks enabled only
// when a delegate-proxy contract is the nominal maker.
func BuildOrderData(slice SliceOrder) (types.ProtocolOrderData, error) {
	salt, err := NewSalt()
	if err != nil {
		return types.ProtocolOrderData{}, err
	}

	traits := types.MakerTraitsBits{
		AllowPartialFill:  true,
		AllowMultipleFill: true,
		PreInteraction:    slice.UseProxy,
		PostInteraction:   slice.UseProxy,
	}

	return types.ProtocolOrderData{
		MakerAsset:   slice.MakerAsset,
		TakerAsset:   slice.TakerAsset,
		Salt:         salt,
		Receiver:     slice.Receiver,
		MakingAmount: slice.MakingAmount.Truncate(0).String(),
		TakingAmount: slice.TakingAmount.Truncate(0).String(),
		Maker:        slice.Maker,
		Extension:    "0x",
		MakerTraits:  "0x" + traits.Encode().Text(16),
	}, nil
}
