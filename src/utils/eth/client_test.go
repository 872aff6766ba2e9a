package eth

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testABIJSON = `[
	{
		"type": "event",
		"name": "Transferred",
		"anonymous": false,
		"inputs": [
			{"name": "id", "type": "uint256", "indexed": true},
			{"name": "to", "type": "address", "indexed": false}
		]
	}
]`

func testABI(t *testing.T) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(testABIJSON))
	require.NoError(t, err)
	return &parsed
}

func transferredLog(t *testing.T, contractABI *abi.ABI, id *big.Int, to common.Address) *types.Log {
	event := contractABI.Events["Transferred"]
	data, err := event.Inputs.NonIndexed().Pack(to)
	require.NoError(t, err)
	return &types.Log{
		Topics: []common.Hash{event.ID, common.BigToHash(id)},
		Data:   data,
	}
}

func TestNetworkName(t *testing.T) {
	assert.Equal(t, "mainnet", NetworkName(1))
	assert.Equal(t, "sepolia", NetworkName(11155111))
	assert.Equal(t, "localhost", NetworkName(31337))
	assert.Equal(t, "chain-99999", NetworkName(99999))
}

func TestDecodeEventsFindsNamedEvent(t *testing.T) {
	contractABI := testABI(t)
	to := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	receipt := &types.Receipt{
		Logs: []*types.Log{transferredLog(t, contractABI, big.NewInt(7), to)},
	}

	args, err := EventFromReceipt(receipt, contractABI, "Transferred")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), args["id"])
	assert.Equal(t, to, args["to"])
}

func TestDecodeEventsSkipsForeignLogs(t *testing.T) {
	contractABI := testABI(t)

	// Unknown topic, as emitted by some other contract in the same tx
	receipt := &types.Receipt{
		Logs: []*types.Log{
			{Topics: []common.Hash{common.HexToHash("0x01")}},
			transferredLog(t, contractABI, big.NewInt(1), common.Address{}),
		},
	}

	events := DecodeEvents(receipt, contractABI)
	require.Len(t, events, 1)
	assert.Equal(t, "Transferred", events[0].Name)
}

func TestEventFromReceiptMissing(t *testing.T) {
	contractABI := testABI(t)

	_, err := EventFromReceipt(&types.Receipt{}, contractABI, "Transferred")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestTransactionErrorKinds(t *testing.T) {
	timeout := &TransactionError{Kind: TxTimeout, Method: "vote", Hash: "0x42"}
	assert.True(t, timeout.Ambiguous())
	assert.Contains(t, timeout.Error(), "timeout")
	assert.Contains(t, timeout.Error(), "0x42")

	reverted := &TransactionError{Kind: TxReverted, Method: "vote", Reason: "already voted"}
	assert.False(t, reverted.Ambiguous())
	assert.Contains(t, reverted.Error(), "already voted")

	rejected := &TransactionError{Kind: TxRejected, Method: "vote", Err: ErrNoSigner}
	assert.False(t, rejected.Ambiguous())
	assert.Contains(t, rejected.Error(), "rejected")
}

func TestRevertReasonFromMessage(t *testing.T) {
	assert.Equal(t, "", revertReason(assert.AnError))
	assert.Equal(t, "already voted", revertReason(errors.New("execution reverted: already voted")))
	assert.Equal(t, "", revertReason(errors.New("execution reverted")))
}
