package model

import (
	"database/sql"
	"time"

	"github.com/jackc/pgtype"
)

const (
	TableBridgeSession = "bridge_sessions"
)

const (
	VoteModeSingle   int16 = 0
	VoteModeMultiple int16 = 1
	VoteModeRanked   int16 = 2
)

type BridgeSession struct {
	ID int

	// Platform identifier, may be any string
	SessionId string

	// SessionId mapped to a uint256, stored as decimal text
	ContractSessionId string

	// Null until the factory deployment is confirmed
	ContractAddress pgtype.Varchar

	Network      string
	Mode         int16
	MaxChoices   int
	EndTimestamp int64

	// Frozen participant snapshot taken at deployment time.
	// [{"id": ..., "label": ...}], positions match the on-chain array.
	Participants pgtype.JSONB

	DeployTxHash pgtype.Varchar

	StartedAt sql.NullTime
	EndedAt   sql.NullTime

	// Final tally written when the session ends
	Results pgtype.JSONB

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (BridgeSession) TableName() string {
	return TableBridgeSession
}

func (self *BridgeSession) IsDeployed() bool {
	return self.ContractAddress.Status == pgtype.Present && self.ContractAddress.String != ""
}
