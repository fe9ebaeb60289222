package protocol

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/1edge/keeper/internal/config"
	"github.com/1edge/keeper/pkg/types"
)

func testWalletKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return "0x" + common.Bytes2Hex(crypto.FromECDSA(key))
}

func testOrderData() types.ProtocolOrderData {
	return types.ProtocolOrderData{
		MakerAsset:   "0x1111111111111111111111111111111111111111",
		TakerAsset:   "0x2222222222222222222222222222222222222222",
		Salt:         "0x1",
		Receiver:     "0x3333333333333333333333333333333333333333",
		MakingAmount: "1000",
		TakingAmount: "2000",
		Maker:        "0x4444444444444444444444444444444444444444",
		Extension:    "0x",
		MakerTraits:  "0x0",
	}
}

func TestOrderHashIsDeterministic(t *testing.T) {
	t.Parallel()
	chainID := big.NewInt(1)
	verifying := common.HexToAddress("0x5555555555555555555555555555555555555555")
	data := testOrderData()

	a, err := OrderHash(chainID, verifying, data)
	if err != nil {
		t.Fatalf("OrderHash: %v", err)
	}
	b, err := OrderHash(chainID, verifying, data)
	if err != nil {
		t.Fatalf("OrderHash: %v", err)
	}
	if a != b {
		t.Errorf("expected identical order data to hash identically, got %q and %q", a, b)
	}

	data.Salt = "0x2"
	c, err := OrderHash(chainID, verifying, data)
	if err != nil {
		t.Fatalf("OrderHash: %v", err)
	}
	if a == c {
		t.Error("expected a different salt to change the hash")
	}
}

func TestAuthSignEOAProducesRealSignature(t *testing.T) {
	t.Parallel()
	auth, err := NewAuth(config.WalletConfig{PrivateKey: testWalletKey(t), SignatureType: 0})
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}

	chainID := big.NewInt(1)
	verifying := common.HexToAddress("0x5555555555555555555555555555555555555555")
	data := testOrderData()
	data.Maker = auth.Address().Hex()

	sig, err := auth.Sign(chainID, verifying, data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig == dummySignature {
		t.Error("expected a real EIP-712 signature for an EOA maker, got the dummy sentinel")
	}
}

func TestAuthSignProxyMakerUsesDummySignature(t *testing.T) {
	t.Parallel()
	auth, err := NewAuth(config.WalletConfig{
		PrivateKey:    testWalletKey(t),
		SignatureType: 1,
		FunderAddress: "0x6666666666666666666666666666666666666666",
	})
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}

	chainID := big.NewInt(1)
	verifying := auth.FunderAddress()
	data := testOrderData()

	sig, err := auth.Sign(chainID, verifying, data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig != dummySignature {
		t.Errorf("expected the dummy sentinel for a delegate-proxy maker, got %q", sig)
	}
}
