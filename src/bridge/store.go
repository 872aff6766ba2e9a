package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgtype"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nzgl-g/votex-bridge/src/utils/logger"
	"github.com/nzgl-g/votex-bridge/src/utils/model"
)

// Postgres-backed session store, participant resolver and vote-count
// sink. The database is a read-optimized cache for on-chain sessions,
// the reconciliation poller is its only writer.
type DbStore struct {
	log *logrus.Entry
	db  *gorm.DB
}

func NewDbStore(db *gorm.DB) (self *DbStore) {
	self = new(DbStore)
	self.log = logger.NewSublogger("store")
	self.db = db
	return
}

// RegisterSession records a session before deployment. Participants
// given here become the frozen snapshot once the contract is deployed.
func (self *DbStore) RegisterSession(ctx context.Context, session *Session) (err error) {
	row, err := sessionToRow(session)
	if err != nil {
		return
	}
	return self.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (self *DbStore) GetSession(ctx context.Context, sessionId string) (session *Session, err error) {
	var row model.BridgeSession
	err = self.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionUnknown
	}
	if err != nil {
		return
	}
	return sessionFromRow(&row)
}

func (self *DbStore) SetContractAddress(ctx context.Context, sessionId, contractAddress, txHash string, participants []Participant) (err error) {
	snapshot := pgtype.JSONB{}
	err = snapshot.Set(participants)
	if err != nil {
		return
	}

	result := self.db.WithContext(ctx).
		Model(&model.BridgeSession{}).
		Where("session_id = ? AND contract_address IS NULL", sessionId).
		Updates(map[string]interface{}{
			"contract_address": contractAddress,
			"deploy_tx_hash":   txHash,
			"participants":     snapshot,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the session is unknown or the address is already set.
		// The orchestrator checks for the latter before deploying, so
		// hitting this means a concurrent deployment won the race.
		return &AlreadyDeployedError{SessionId: sessionId, ContractAddress: contractAddress}
	}
	return nil
}

func (self *DbStore) MarkStarted(ctx context.Context, sessionId string) (err error) {
	return self.db.WithContext(ctx).
		Model(&model.BridgeSession{}).
		Where("session_id = ? AND started_at IS NULL", sessionId).
		Updates(map[string]interface{}{
			"started_at": time.Now(),
			"updated_at": time.Now(),
		}).Error
}

func (self *DbStore) MarkEnded(ctx context.Context, sessionId string, finalResults []VoteCountUpdate, voterCount int64) (err error) {
	results := pgtype.JSONB{}
	err = results.Set(map[string]interface{}{
		"counts":      finalResults,
		"voter_count": voterCount,
	})
	if err != nil {
		return
	}

	return self.db.WithContext(ctx).
		Model(&model.BridgeSession{}).
		Where("session_id = ? AND ended_at IS NULL", sessionId).
		Updates(map[string]interface{}{
			"ended_at":   time.Now(),
			"results":    results,
			"updated_at": time.Now(),
		}).Error
}

func (self *DbStore) GetDeployedActive(ctx context.Context) (sessions []*Session, err error) {
	var rows []model.BridgeSession
	err = self.db.WithContext(ctx).
		Where("contract_address IS NOT NULL AND ended_at IS NULL").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return
	}

	sessions = make([]*Session, 0, len(rows))
	for i := range rows {
		session, err := sessionFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return
}

func (self *DbStore) SaveOffchainVote(ctx context.Context, sessionId, voterId string, selection *BallotSelection) (err error) {
	choices := pgtype.JSONB{}
	err = choices.Set(selection.Choices)
	if err != nil {
		return
	}

	ranks := pgtype.JSONB{Status: pgtype.Null}
	if len(selection.Ranks) > 0 {
		err = ranks.Set(selection.Ranks)
		if err != nil {
			return
		}
	}

	result := self.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "voter_id"}},
			DoNothing: true,
		}).
		Create(&model.OffchainVote{
			SessionId: sessionId,
			VoterId:   voterId,
			Choices:   choices,
			Ranks:     ranks,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyVoted
	}
	return nil
}

func (self *DbStore) ResolveParticipants(ctx context.Context, sessionId string) (participants []Participant, err error) {
	session, err := self.GetSession(ctx, sessionId)
	if err != nil {
		return
	}
	return session.Participants, nil
}

// UpsertVoteCounts is idempotent, the same batch applied twice leaves
// the same rows. Database-sourced counts never overwrite rows the
// poller already reconciled from chain.
func (self *DbStore) UpsertVoteCounts(ctx context.Context, sessionId string, counts []VoteCountUpdate, voterCount int64, source string) (err error) {
	if len(counts) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]model.VoteCount, len(counts))
	for i, count := range counts {
		rows[i] = model.VoteCount{
			SessionId:    sessionId,
			ChoiceId:     count.ChoiceId,
			ChoiceLabel:  count.ChoiceLabel,
			VoteCount:    count.VoteCount,
			VoterCount:   voterCount,
			Source:       source,
			LastSyncedAt: now,
		}
	}

	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "choice_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"choice_label", "vote_count", "voter_count", "source", "last_synced_at"}),
	}
	if source == model.VoteSourceDatabase {
		conflict.Where = clause.Where{Exprs: []clause.Expression{
			clause.Neq{Column: clause.Column{Name: "source", Table: model.TableVoteCount}, Value: model.VoteSourceBlockchain},
		}}
	}

	return self.db.WithContext(ctx).Clauses(conflict).Create(&rows).Error
}

func sessionToRow(session *Session) (row *model.BridgeSession, err error) {
	participants := pgtype.JSONB{}
	err = participants.Set(session.Participants)
	if err != nil {
		return
	}

	row = &model.BridgeSession{
		SessionId:         session.Id,
		ContractSessionId: ContractSessionId(session.Id).String(),
		Network:           session.Network,
		Mode:              int16(session.Mode),
		MaxChoices:        session.MaxChoices,
		EndTimestamp:      session.EndTimestamp,
		Participants:      participants,
	}
	if session.ContractAddress != "" {
		err = row.ContractAddress.Set(session.ContractAddress)
		if err != nil {
			return
		}
	} else {
		row.ContractAddress.Status = pgtype.Null
	}
	row.DeployTxHash.Status = pgtype.Null
	row.Results.Status = pgtype.Null
	return
}

func sessionFromRow(row *model.BridgeSession) (session *Session, err error) {
	session = &Session{
		Id:           row.SessionId,
		Network:      row.Network,
		Mode:         VoteMode(row.Mode),
		MaxChoices:   row.MaxChoices,
		EndTimestamp: row.EndTimestamp,
	}
	if row.ContractAddress.Status == pgtype.Present {
		session.ContractAddress = row.ContractAddress.String
	}
	if row.Participants.Status == pgtype.Present && len(row.Participants.Bytes) > 0 {
		err = json.Unmarshal(row.Participants.Bytes, &session.Participants)
		if err != nil {
			return
		}
	}
	if row.StartedAt.Valid {
		startedAt := row.StartedAt.Time
		session.StartedAt = &startedAt
	}
	if row.EndedAt.Valid {
		endedAt := row.EndedAt.Time
		session.EndedAt = &endedAt
	}
	return
}
