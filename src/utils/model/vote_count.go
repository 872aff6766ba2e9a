package model

import (
	"time"
)

const (
	TableVoteCount = "vote_counts"
)

const (
	VoteSourceBlockchain = "blockchain"
	VoteSourceDatabase   = "database"
)

type VoteCount struct {
	ID int

	// One row per (session, choice)
	SessionId string
	ChoiceId  string

	ChoiceLabel string
	VoteCount   int64
	VoterCount  int64

	// Which tally produced the row, blockchain or database
	Source string

	LastSyncedAt time.Time
}

func (VoteCount) TableName() string {
	return TableVoteCount
}
