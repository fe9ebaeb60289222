package types

import "math/big"

// ProtocolOrderData is the on-chain order record body, matching the
// `data` object nested in the protocol API's orderbook listing (§6) and
// the payload submitted with POST /orderbook/v4.0/{chain}.
type ProtocolOrderData struct {
	MakerAsset    string   `json:"makerAsset"`
	TakerAsset    string   `json:"takerAsset"`
	Salt          string   `json:"salt"`
	Receiver      string   `json:"receiver"`
	MakingAmount  string   `json:"makingAmount"`
	TakingAmount  string   `json:"takingAmount"`
	Maker         string   `json:"maker"`
	Extension     string   `json:"extension"`
	MakerTraits   string   `json:"makerTraits"`
}

// ProtocolOrderListing is one entry in the GET
// /orderbook/v4.0/{chain}/address/{maker} response array.
type ProtocolOrderListing struct {
	OrderHash            string            `json:"orderHash"`
	CreateDateTime       string            `json:"createDateTime"`
	RemainingMakerAmount string            `json:"remainingMakerAmount"`
	MakerBalance         string            `json:"makerBalance"`
	MakerAllowance       string            `json:"makerAllowance"`
	Data                 ProtocolOrderData `json:"data"`
	MakerRate            string            `json:"makerRate"`
	TakerRate            string            `json:"takerRate"`
	OrderInvalidReason   string            `json:"orderInvalidReason,omitempty"`
}

// ProtocolSubmitRequest is the POST /orderbook/v4.0/{chain} request body.
type ProtocolSubmitRequest struct {
	Order     ProtocolOrderData `json:"order"`
	Signature string            `json:"signature"`
}

// MakerTraitsBits builds the maker-traits bitfield described in §4.6:
// partial fills, multiple fills, and pre/post-interaction hooks enabled
// whenever a delegate-proxy contract is the nominal maker.
type MakerTraitsBits struct {
	AllowPartialFill  bool
	AllowMultipleFill bool
	PreInteraction    bool
	PostInteraction   bool
}

// Encode packs the trait flags into the low bits of a makerTraits word, in
// the same bit positions used across the limit-order-protocol family: bit
// 0 no-partial-fill (inverted: set means disabled), bit 1 no-multiple-fill
// (inverted), bit 2 pre-interaction, bit 3 post-interaction.
func (b MakerTraitsBits) Encode() *big.Int {
	traits := new(big.Int)
	if !b.AllowPartialFill {
		traits.SetBit(traits, 0, 1)
	}
	if !b.AllowMultipleFill {
		traits.SetBit(traits, 1, 1)
	}
	if b.PreInteraction {
		traits.SetBit(traits, 2, 1)
	}
	if b.PostInteraction {
		traits.SetBit(traits, 3, 1)
	}
	return traits
}

// SubmitErrorKind classifies a Slice Submitter failure per §4.6/§7.
type SubmitErrorKind string

const (
	SubmitTransient SubmitErrorKind = "Transient"
	SubmitPermanent SubmitErrorKind = "Permanent"
)

// SubmitError is returned by the protocol client on a failed submission.
// Transient errors are retried by the caller; Permanent errors propagate
// to the supervisor, which transitions the order toward Failed.
type SubmitError struct {
	Kind   SubmitErrorKind
	Detail string
}

func (e *SubmitError) Error() string {
	return string(e.Kind) + ": " + e.Detail
}
