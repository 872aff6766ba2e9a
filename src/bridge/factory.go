package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/nzgl-g/votex-bridge/src/utils/eth"
	"github.com/nzgl-g/votex-bridge/src/utils/logger"
)

// Talks to the session factory contract. Deploys one voting contract
// per session and nothing else, persistence belongs to the
// orchestrator.
type FactoryAdapter struct {
	log    *logrus.Entry
	client ChainClient
}

func NewFactoryAdapter(client ChainClient) (self *FactoryAdapter) {
	self = new(FactoryAdapter)
	self.log = logger.NewSublogger("factory")
	self.client = client
	return
}

// ContractSessionId maps a platform session id onto the uint256 the
// factory expects. Integral ids pass through, anything else is
// keccak-hashed into the numeric domain.
func ContractSessionId(sessionId string) *big.Int {
	if n, ok := new(big.Int).SetString(sessionId, 10); ok && n.Sign() >= 0 {
		return n
	}
	if strings.HasPrefix(sessionId, "0x") {
		if n, ok := new(big.Int).SetString(sessionId[2:], 16); ok {
			return n
		}
	}
	return new(big.Int).SetBytes(crypto.Keccak256([]byte(sessionId)))
}

func (self *FactoryAdapter) validate(params *DeployParams) error {
	if len(params.Participants) == 0 {
		return ErrNoParticipants
	}

	switch params.Mode {
	case VoteModeSingle:
		// maxChoices ignored, one choice per ballot

	case VoteModeMultiple:
		if params.MaxChoices < 1 || params.MaxChoices > len(params.Participants) {
			return &DeploymentError{
				SessionId: params.SessionId,
				Reason:    fmt.Sprintf("max choices %d out of range for %d participants", params.MaxChoices, len(params.Participants)),
			}
		}

	case VoteModeRanked:
		min, max := params.MinRankedChoices, params.MaxRankedChoices
		if max == 0 {
			max = len(params.Participants)
		}
		if min > max || max > len(params.Participants) {
			return &DeploymentError{
				SessionId: params.SessionId,
				Reason:    fmt.Sprintf("ranked bounds [%d, %d] out of range for %d participants", min, max, len(params.Participants)),
			}
		}

	default:
		return &DeploymentError{
			SessionId: params.SessionId,
			Reason:    fmt.Sprintf("unknown vote mode %d", params.Mode),
		}
	}
	return nil
}

// DeploySession submits the factory creation transaction and extracts
// the created contract address from the SessionCreated event. A mined
// transaction without that event is a data-integrity failure, not a
// success.
func (self *FactoryAdapter) DeploySession(ctx context.Context, params *DeployParams) (deployment *Deployment, err error) {
	err = self.validate(params)
	if err != nil {
		return
	}

	factoryAddress, ok := self.client.FactoryAddress()
	if !ok {
		return nil, &DeploymentError{
			SessionId: params.SessionId,
			Reason:    fmt.Sprintf("no factory configured for network %s", self.client.NetworkName()),
		}
	}

	contractSessionId := ContractSessionId(params.SessionId)

	names := make([]string, len(params.Participants))
	for i, p := range params.Participants {
		names[i] = p.Id
	}

	maxChoices := params.MaxChoices
	if params.Mode == VoteModeSingle {
		maxChoices = 1
	}

	self.log.WithField("session_id", params.SessionId).
		WithField("participants", len(names)).
		WithField("mode", params.Mode.String()).
		Info("Deploying voting session")

	receipt, _, err := self.client.Send(ctx, factoryAddress, factoryABI, "createVoteSession",
		contractSessionId,
		names,
		new(big.Int).SetInt64(params.EndTimestamp),
		uint8(params.Mode),
		uint8(maxChoices),
	)
	if err != nil {
		return nil, &DeploymentError{SessionId: params.SessionId, Err: err}
	}

	args, err := eth.EventFromReceipt(receipt, factoryABI, EventSessionCreated)
	if err != nil {
		if errors.Is(err, eth.ErrEventNotFound) {
			return nil, &DeploymentError{
				SessionId: params.SessionId,
				TxHash:    receipt.TxHash.Hex(),
				Reason:    "transaction mined but SessionCreated event is missing",
			}
		}
		return nil, &DeploymentError{SessionId: params.SessionId, TxHash: receipt.TxHash.Hex(), Err: err}
	}

	sessionAddress, ok := args["sessionAddress"].(common.Address)
	if !ok {
		return nil, &DeploymentError{
			SessionId: params.SessionId,
			TxHash:    receipt.TxHash.Hex(),
			Reason:    "SessionCreated event carries no session address",
		}
	}

	deployment = &Deployment{
		SessionId:         params.SessionId,
		ContractSessionId: contractSessionId,
		ContractAddress:   sessionAddress.Hex(),
		TxHash:            receipt.TxHash.Hex(),
	}
	if creator, ok := args["creator"].(common.Address); ok {
		deployment.Creator = creator.Hex()
	}

	self.log.WithField("session_id", params.SessionId).
		WithField("contract_address", deployment.ContractAddress).
		Info("Voting session deployed")
	return
}

// SessionAddress asks the factory for the contract deployed for the
// given session id, zero address when none exists.
func (self *FactoryAdapter) SessionAddress(ctx context.Context, sessionId string) (address common.Address, err error) {
	factoryAddress, ok := self.client.FactoryAddress()
	if !ok {
		return common.Address{}, &DeploymentError{
			SessionId: sessionId,
			Reason:    fmt.Sprintf("no factory configured for network %s", self.client.NetworkName()),
		}
	}

	var out []interface{}
	err = self.client.Call(ctx, factoryAddress, factoryABI, "sessions", &out, ContractSessionId(sessionId))
	if err != nil {
		return
	}
	address, _ = out[0].(common.Address)
	return
}
