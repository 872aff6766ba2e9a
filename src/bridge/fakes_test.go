package bridge

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/nzgl-g/votex-bridge/src/utils/eth"
)

// Scripted chain double shared by the adapter tests.
type fakeChain struct {
	mtx sync.Mutex

	isActive   bool
	remaining  int64
	names      []string
	counts     []int64
	voterCount int64
	voted      map[common.Address]bool

	factoryAddress common.Address
	hasFactory     bool
	signer         common.Address

	callErr error
	sendErr error

	// Logs attached to every transaction receipt
	receiptLogs []*types.Log

	sentMethods []string
	sentArgs    [][]interface{}
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		isActive:       true,
		voted:          make(map[common.Address]bool),
		factoryAddress: common.HexToAddress("0x00000000000000000000000000000000000000f1"),
		hasFactory:     true,
		signer:         common.HexToAddress("0x00000000000000000000000000000000000000a1"),
	}
}

func (self *fakeChain) Call(ctx context.Context, address common.Address, contractABI *abi.ABI, method string, out *[]interface{}, args ...interface{}) error {
	if self.callErr != nil {
		return self.callErr
	}

	switch method {
	case "getStatus":
		*out = []interface{}{self.isActive, big.NewInt(self.remaining)}
	case "getResults":
		counts := make([]*big.Int, len(self.counts))
		for i, c := range self.counts {
			counts[i] = big.NewInt(c)
		}
		*out = []interface{}{self.names, counts}
	case "getVoterCount":
		*out = []interface{}{big.NewInt(self.voterCount)}
	case "checkVoted":
		voter := args[0].(common.Address)
		*out = []interface{}{self.voted[voter]}
	case "sessions":
		*out = []interface{}{common.Address{}}
	}
	return nil
}

func (self *fakeChain) Send(ctx context.Context, address common.Address, contractABI *abi.ABI, method string, args ...interface{}) (*types.Receipt, []eth.DecodedEvent, error) {
	self.mtx.Lock()
	self.sentMethods = append(self.sentMethods, method)
	self.sentArgs = append(self.sentArgs, args)
	self.mtx.Unlock()

	if self.sendErr != nil {
		return nil, nil, self.sendErr
	}

	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0x0000000000000000000000000000000000000000000000000000000000000042"),
		Logs:   self.receiptLogs,
	}
	return receipt, eth.DecodeEvents(receipt, contractABI), nil
}

func (self *fakeChain) CodeExistsAt(ctx context.Context, address common.Address) (bool, error) {
	return true, nil
}

func (self *fakeChain) FactoryAddress() (common.Address, bool) {
	return self.factoryAddress, self.hasFactory
}

func (self *fakeChain) NetworkName() string {
	return "localhost"
}

func (self *fakeChain) SignerAddress() common.Address {
	return self.signer
}

func (self *fakeChain) sessionCreatedLog(sessionId *big.Int, sessionAddress, creator common.Address) *types.Log {
	event := factoryABI.Events[EventSessionCreated]
	data, err := event.Inputs.NonIndexed().Pack(sessionAddress, creator)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Topics: []common.Hash{event.ID, common.BigToHash(sessionId)},
		Data:   data,
	}
}

// In-memory session store double.
type fakeStore struct {
	mtx sync.Mutex

	sessions map[string]*Session

	offchainVotes   map[string]*BallotSelection
	endedSessions   map[string][]VoteCountUpdate
	startedSessions map[string]bool
	setAddresses    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:        make(map[string]*Session),
		offchainVotes:   make(map[string]*BallotSelection),
		endedSessions:   make(map[string][]VoteCountUpdate),
		startedSessions: make(map[string]bool),
		setAddresses:    make(map[string]string),
	}
}

func (self *fakeStore) GetSession(ctx context.Context, sessionId string) (*Session, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	session, ok := self.sessions[sessionId]
	if !ok {
		return nil, ErrSessionUnknown
	}
	copied := *session
	return &copied, nil
}

func (self *fakeStore) SetContractAddress(ctx context.Context, sessionId, contractAddress, txHash string, participants []Participant) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	session, ok := self.sessions[sessionId]
	if !ok {
		return ErrSessionUnknown
	}
	if session.ContractAddress != "" {
		return &AlreadyDeployedError{SessionId: sessionId, ContractAddress: session.ContractAddress}
	}
	session.ContractAddress = contractAddress
	session.Participants = participants
	self.setAddresses[sessionId] = contractAddress
	return nil
}

func (self *fakeStore) MarkStarted(ctx context.Context, sessionId string) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.startedSessions[sessionId] = true
	return nil
}

func (self *fakeStore) MarkEnded(ctx context.Context, sessionId string, finalResults []VoteCountUpdate, voterCount int64) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.endedSessions[sessionId] = finalResults
	return nil
}

func (self *fakeStore) GetDeployedActive(ctx context.Context) (out []*Session, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	for _, session := range self.sessions {
		if session.ContractAddress != "" {
			if _, ended := self.endedSessions[session.Id]; !ended {
				copied := *session
				out = append(out, &copied)
			}
		}
	}
	return
}

func (self *fakeStore) SaveOffchainVote(ctx context.Context, sessionId, voterId string, selection *BallotSelection) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	key := sessionId + "/" + voterId
	if _, dup := self.offchainVotes[key]; dup {
		return ErrAlreadyVoted
	}
	self.offchainVotes[key] = selection
	return nil
}

func (self *fakeStore) ResolveParticipants(ctx context.Context, sessionId string) ([]Participant, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	session, ok := self.sessions[sessionId]
	if !ok {
		return nil, ErrSessionUnknown
	}
	return session.Participants, nil
}

func (self *fakeStore) markEndedCount() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return len(self.endedSessions)
}

// Recording vote-count sink, stores the latest batch per session the
// way an idempotent upsert would.
type fakeSink struct {
	mtx sync.Mutex

	upserts int
	state   map[string]map[string]int64
	voters  map[string]int64
	sources map[string]string
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		state:   make(map[string]map[string]int64),
		voters:  make(map[string]int64),
		sources: make(map[string]string),
	}
}

func (self *fakeSink) UpsertVoteCounts(ctx context.Context, sessionId string, counts []VoteCountUpdate, voterCount int64, source string) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	self.upserts++
	rows, ok := self.state[sessionId]
	if !ok {
		rows = make(map[string]int64)
		self.state[sessionId] = rows
	}
	for _, count := range counts {
		rows[count.ChoiceId] = count.VoteCount
	}
	self.voters[sessionId] = voterCount
	self.sources[sessionId] = source
	return nil
}

func (self *fakeSink) upsertCount() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.upserts
}

// Recording notifier.
type fakeNotifier struct {
	mtx        sync.Mutex
	deployed   []string
	ended      []string
	reconciled []string
}

func (self *fakeNotifier) SessionDeployed(sessionId, contractAddress string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.deployed = append(self.deployed, sessionId)
}

func (self *fakeNotifier) SessionEnded(sessionId string, finalResults []VoteCountUpdate) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.ended = append(self.ended, sessionId)
}

func (self *fakeNotifier) VoteCountsReconciled(sessionId string, counts []VoteCountUpdate, voterCount int64) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.reconciled = append(self.reconciled, sessionId)
}

func (self *fakeNotifier) reconciledCount() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return len(self.reconciled)
}

func (self *fakeNotifier) endedCount() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return len(self.ended)
}
