package bridge

import (
	"math/big"
	"time"
)

type VoteMode uint8

const (
	VoteModeSingle VoteMode = iota
	VoteModeMultiple
	VoteModeRanked
)

func (mode VoteMode) String() string {
	switch mode {
	case VoteModeSingle:
		return "single"
	case VoteModeMultiple:
		return "multiple"
	case VoteModeRanked:
		return "ranked"
	}
	return "unknown"
}

// Identifiers are the authority, labels are display-only and may
// collide between participants.
type Participant struct {
	Id    string `json:"id"`
	Label string `json:"label"`
}

// Votable unit, an election or a poll. A non-empty ContractAddress is
// the sole signal the session is on-chain.
type Session struct {
	Id              string
	ContractAddress string
	Network         string
	Mode            VoteMode
	MaxChoices      int
	EndTimestamp    int64

	// Ordered snapshot frozen at deployment time. On-chain positions
	// map back to these entries by index, never re-sort it.
	Participants []Participant

	StartedAt *time.Time
	EndedAt   *time.Time
}

func (self *Session) IsOnChain() bool {
	return self.ContractAddress != ""
}

func (self *Session) ParticipantByMatch(name string) (participant Participant, found bool) {
	for _, p := range self.Participants {
		if p.Id == name {
			return p, true
		}
	}
	// Identifier match failed, fall back to the display label
	for _, p := range self.Participants {
		if p.Label == name {
			return p, true
		}
	}
	return
}

type Status struct {
	IsActive         bool
	RemainingSeconds uint64
}

// Positional arrays straight off the contract. Callers zip them with
// the session's stored participant ordering.
type Results struct {
	ParticipantNames []string
	VoteCounts       []uint64
}

// Combined readback of a deployed contract, used to verify a fresh
// deployment answers before handing the address out.
type SessionDetails struct {
	Status     Status
	Results    Results
	VoterCount uint64
}

type VoteCountUpdate struct {
	ChoiceId    string `json:"choice_id"`
	ChoiceLabel string `json:"choice_label"`
	VoteCount   int64  `json:"vote_count"`
}

// One voter's selection. Choices keep the caller's insertion order,
// Ranks is parallel to Choices and only used in ranked mode.
type BallotSelection struct {
	Choices []string
	Ranks   []int
}

type DeployParams struct {
	SessionId    string
	Participants []Participant
	EndTimestamp int64
	Mode         VoteMode
	MaxChoices   int

	// Ranked mode bounds, both optional. Zero means unbounded.
	MinRankedChoices int
	MaxRankedChoices int
}

type VoteReceipt struct {
	SessionId string
	OnChain   bool

	// Set only for on-chain votes
	TxHash string
}

// Deployment outcome reported by the factory adapter.
type Deployment struct {
	SessionId         string
	ContractSessionId *big.Int
	ContractAddress   string
	TxHash            string
	Creator           string
}
