package bridge

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/nzgl-g/votex-bridge/src/utils/logger"
)

// Reads and writes a single deployed voting contract.
type SessionAdapter struct {
	log    *logrus.Entry
	client ChainClient
}

func NewSessionAdapter(client ChainClient) (self *SessionAdapter) {
	self = new(SessionAdapter)
	self.log = logger.NewSublogger("session-contract")
	self.client = client
	return
}

func (self *SessionAdapter) GetStatus(ctx context.Context, address string) (status *Status, err error) {
	var out []interface{}
	err = self.client.Call(ctx, common.HexToAddress(address), sessionABI, "getStatus", &out)
	if err != nil {
		return
	}

	status = new(Status)
	status.IsActive, _ = out[0].(bool)
	if remaining, ok := out[1].(*big.Int); ok {
		status.RemainingSeconds = remaining.Uint64()
	}
	return
}

func (self *SessionAdapter) GetResults(ctx context.Context, address string) (results *Results, err error) {
	var out []interface{}
	err = self.client.Call(ctx, common.HexToAddress(address), sessionABI, "getResults", &out)
	if err != nil {
		return
	}

	results = new(Results)
	results.ParticipantNames, _ = out[0].([]string)
	if counts, ok := out[1].([]*big.Int); ok {
		results.VoteCounts = make([]uint64, len(counts))
		for i, c := range counts {
			results.VoteCounts[i] = c.Uint64()
		}
	}
	return
}

func (self *SessionAdapter) GetVoterCount(ctx context.Context, address string) (count uint64, err error) {
	var out []interface{}
	err = self.client.Call(ctx, common.HexToAddress(address), sessionABI, "getVoterCount", &out)
	if err != nil {
		return
	}
	if n, ok := out[0].(*big.Int); ok {
		count = n.Uint64()
	}
	return
}

func (self *SessionAdapter) HasVoted(ctx context.Context, address string, voter common.Address) (voted bool, err error) {
	var out []interface{}
	err = self.client.Call(ctx, common.HexToAddress(address), sessionABI, "checkVoted", &out, voter)
	if err != nil {
		return
	}
	voted, _ = out[0].(bool)
	return
}

// CastVote submits a ballot after pre-flight checks. An inactive
// session or a repeated voter aborts locally, no gas is spent on a
// transaction the contract would revert anyway.
func (self *SessionAdapter) CastVote(ctx context.Context, session *Session, selection *BallotSelection) (txHash string, err error) {
	choices, ranks, err := buildVotePayload(session, selection)
	if err != nil {
		return
	}

	status, err := self.GetStatus(ctx, session.ContractAddress)
	if err != nil {
		return
	}
	if !status.IsActive {
		return "", ErrVotingClosed
	}

	voted, err := self.HasVoted(ctx, session.ContractAddress, self.client.SignerAddress())
	if err != nil {
		return
	}
	if voted {
		return "", ErrAlreadyVoted
	}

	receipt, _, err := self.client.Send(ctx, common.HexToAddress(session.ContractAddress), sessionABI, "vote", choices, ranks)
	if err != nil {
		return
	}
	return receipt.TxHash.Hex(), nil
}

// GetSessionDetails reads the contract's full public state in one
// pass. A freshly deployed contract that fails any of these reads is
// not usable.
func (self *SessionAdapter) GetSessionDetails(ctx context.Context, address string) (details *SessionDetails, err error) {
	status, err := self.GetStatus(ctx, address)
	if err != nil {
		return
	}
	results, err := self.GetResults(ctx, address)
	if err != nil {
		return
	}
	voterCount, err := self.GetVoterCount(ctx, address)
	if err != nil {
		return
	}

	details = new(SessionDetails)
	details.Status = *status
	details.Results = *results
	details.VoterCount = voterCount
	return
}

// EndSession force-ends voting on chain regardless of the deadline.
func (self *SessionAdapter) EndSession(ctx context.Context, address string) (txHash string, err error) {
	receipt, _, err := self.client.Send(ctx, common.HexToAddress(address), sessionABI, "endSession")
	if err != nil {
		return
	}
	self.log.WithField("contract_address", address).Info("Session ended on chain")
	return receipt.TxHash.Hex(), nil
}

// buildVotePayload validates the selection against the session and
// shapes it into the contract's (choices, ranks) arrays.
func buildVotePayload(session *Session, selection *BallotSelection) (choices []string, ranks []*big.Int, err error) {
	if len(selection.Choices) == 0 {
		return nil, nil, ErrInvalidChoice
	}

	seen := make(map[string]struct{}, len(selection.Choices))
	for _, choice := range selection.Choices {
		if _, dup := seen[choice]; dup {
			return nil, nil, ErrInvalidChoice
		}
		seen[choice] = struct{}{}

		if len(session.Participants) > 0 {
			if _, found := session.ParticipantByMatch(choice); !found {
				return nil, nil, ErrInvalidChoice
			}
		}
	}

	switch session.Mode {
	case VoteModeSingle:
		if len(selection.Choices) != 1 {
			return nil, nil, ErrInvalidChoice
		}
		return selection.Choices, []*big.Int{big.NewInt(1)}, nil

	case VoteModeMultiple:
		if session.MaxChoices > 0 && len(selection.Choices) > session.MaxChoices {
			return nil, nil, ErrInvalidChoice
		}
		ranks = make([]*big.Int, len(selection.Choices))
		for i := range ranks {
			ranks[i] = big.NewInt(1)
		}
		return selection.Choices, ranks, nil

	case VoteModeRanked:
		if len(selection.Ranks) != len(selection.Choices) {
			return nil, nil, ErrInvalidChoice
		}
		for _, r := range selection.Ranks {
			if r < 1 {
				return nil, nil, ErrInvalidChoice
			}
		}
		normalized := NormalizeRanks(selection.Ranks)
		ranks = make([]*big.Int, len(normalized))
		for i, r := range normalized {
			ranks[i] = big.NewInt(int64(r))
		}
		return selection.Choices, ranks, nil
	}

	return nil, nil, fmt.Errorf("unknown vote mode %d", session.Mode)
}

// NormalizeRanks maps raw preference values onto a dense 1-based
// sequence. Ties keep sharing a value and the output stays parallel to
// the input, so insertion order decides nothing beyond presentation.
// {A:5, B:5, C:2} becomes {C:1, A:2, B:2}.
func NormalizeRanks(raw []int) (normalized []int) {
	dense := make(map[int]int, len(raw))
	distinct := make([]int, 0, len(raw))
	for _, r := range raw {
		if _, ok := dense[r]; !ok {
			dense[r] = 0
			distinct = append(distinct, r)
		}
	}
	sort.Ints(distinct)
	for i, v := range distinct {
		dense[v] = i + 1
	}

	normalized = make([]int, len(raw))
	for i, r := range raw {
		normalized[i] = dense[r]
	}
	return
}
