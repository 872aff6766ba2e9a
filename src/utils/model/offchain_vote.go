package model

import (
	"time"

	"github.com/jackc/pgtype"
)

const (
	TableOffchainVote = "offchain_votes"
)

// Ballot recorded directly in the database for sessions that have no
// deployed contract. Never written for on-chain sessions.
type OffchainVote struct {
	ID int

	SessionId string
	VoterId   string

	// Selected choice ids in ballot order
	Choices pgtype.JSONB

	// Choice id to rank, only present for ranked sessions
	Ranks pgtype.JSONB

	CreatedAt time.Time
}

func (OffchainVote) TableName() string {
	return TableOffchainVote
}
