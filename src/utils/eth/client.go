package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/nzgl-g/votex-bridge/src/utils/config"
	"github.com/nzgl-g/votex-bridge/src/utils/logger"
)

var networkNames = map[uint64]string{
	1:        "mainnet",
	11155111: "sepolia",
	17000:    "holesky",
	137:      "polygon",
	80002:    "amoy",
	1337:     "localhost",
	31337:    "localhost",
}

func NetworkName(chainID uint64) string {
	if name, ok := networkNames[chainID]; ok {
		return name
	}
	return fmt.Sprintf("chain-%d", chainID)
}

// Decoded event pulled out of a transaction receipt.
type DecodedEvent struct {
	Name string
	Args map[string]interface{}
}

// Client wraps a JSON-RPC connection to an EVM node. All network
// operations go through a shared rate limiter. Connection state is
// guarded so Reconnect can swap the underlying client under callers.
type Client struct {
	log     *logrus.Entry
	config  *config.Chain
	limiter ratelimit.Limiter

	// Contract bytecode is immutable once deployed, positives are
	// cached forever within the process lifetime.
	codeCache *cache.Cache

	mtx            sync.RWMutex
	rpc            *ethclient.Client
	chainID        *big.Int
	networkName    string
	factoryAddress common.Address
	hasFactory     bool

	signerKey     *ecdsa.PrivateKey
	signerAddress common.Address
}

func NewClient(cfg *config.Chain) (self *Client, err error) {
	self = new(Client)
	self.log = logger.NewSublogger("eth-client")
	self.config = cfg
	self.limiter = ratelimit.New(cfg.RpcRequestsPerSecond)
	self.codeCache = cache.New(cache.NoExpiration, cache.NoExpiration)

	if cfg.PrivateKey != "" {
		self.signerKey, err = crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse signing key: %w", err)
		}
		self.signerAddress = crypto.PubkeyToAddress(self.signerKey.PublicKey)
	}
	return
}

// Connect dials the provider, detects the chain and resolves the
// factory address for the detected network.
func (self *Client) Connect(ctx context.Context) (err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.connect(ctx)
}

// Reconnect tears down the current connection and dials again.
func (self *Client) Reconnect(ctx context.Context) (err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.rpc != nil {
		self.rpc.Close()
		self.rpc = nil
	}
	return self.connect(ctx)
}

func (self *Client) connect(ctx context.Context) (err error) {
	self.limiter.Take()

	client, err := ethclient.DialContext(ctx, self.config.RpcUrl)
	if err != nil {
		return &ConnectionError{Endpoint: self.config.RpcUrl, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, self.config.CallTimeout)
	defer cancel()

	chainID, err := client.ChainID(callCtx)
	if err != nil {
		client.Close()
		return &ConnectionError{Endpoint: self.config.RpcUrl, Err: err}
	}

	self.rpc = client
	self.chainID = chainID
	self.networkName = NetworkName(chainID.Uint64())

	addr, ok := self.config.FactoryAddresses[self.networkName]
	if !ok || addr == "" {
		self.hasFactory = false
		if !self.config.Permissive {
			client.Close()
			self.rpc = nil
			return &UnsupportedNetworkError{ChainID: chainID.Uint64(), Network: self.networkName}
		}
		self.log.WithField("network", self.networkName).
			Warn("No factory address configured for detected network, deployments disabled")
	} else {
		self.factoryAddress = common.HexToAddress(addr)
		self.hasFactory = true
	}

	self.log.WithField("network", self.networkName).
		WithField("chain_id", chainID.Uint64()).
		Info("Connected to chain")
	return nil
}

func (self *Client) connection() (*ethclient.Client, error) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()
	if self.rpc == nil {
		return nil, &ConnectionError{Endpoint: self.config.RpcUrl, Err: fmt.Errorf("not connected")}
	}
	return self.rpc, nil
}

func (self *Client) NetworkName() string {
	self.mtx.RLock()
	defer self.mtx.RUnlock()
	return self.networkName
}

func (self *Client) ChainID() *big.Int {
	self.mtx.RLock()
	defer self.mtx.RUnlock()
	return self.chainID
}

// FactoryAddress returns the session factory for the connected
// network. Second value is false when none is configured.
func (self *Client) FactoryAddress() (common.Address, bool) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()
	return self.factoryAddress, self.hasFactory
}

func (self *Client) SignerAddress() common.Address {
	return self.signerAddress
}

func (self *Client) HasSigner() bool {
	return self.signerKey != nil
}

// Call performs a read-only contract invocation.
func (self *Client) Call(ctx context.Context, address common.Address, contractABI *abi.ABI, method string, out *[]interface{}, args ...interface{}) (err error) {
	client, err := self.connection()
	if err != nil {
		return err
	}

	self.limiter.Take()

	callCtx, cancel := context.WithTimeout(ctx, self.config.CallTimeout)
	defer cancel()

	bound := bind.NewBoundContract(address, *contractABI, client, client, client)
	err = bound.Call(&bind.CallOpts{Context: callCtx}, out, method, args...)
	if err != nil {
		return &ContractCallError{
			Address: address.Hex(),
			Method:  method,
			Reason:  revertReason(err),
			Err:     err,
		}
	}
	return nil
}

// Send signs and submits a state-changing transaction, then waits for
// it to be mined within the confirmation bound. Returns the mined
// receipt together with every event decoded from its logs.
func (self *Client) Send(ctx context.Context, address common.Address, contractABI *abi.ABI, method string, args ...interface{}) (receipt *types.Receipt, events []DecodedEvent, err error) {
	client, err := self.connection()
	if err != nil {
		return nil, nil, err
	}

	if self.signerKey == nil {
		return nil, nil, &TransactionError{Kind: TxRejected, Method: method, Err: ErrNoSigner}
	}

	self.mtx.RLock()
	chainID := self.chainID
	self.mtx.RUnlock()

	opts, err := bind.NewKeyedTransactorWithChainID(self.signerKey, chainID)
	if err != nil {
		return nil, nil, &TransactionError{Kind: TxRejected, Method: method, Err: err}
	}
	opts.Context = ctx
	opts.GasLimit = self.config.GasLimit

	self.limiter.Take()

	bound := bind.NewBoundContract(address, *contractABI, client, client, client)
	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		if reason := revertReason(err); reason != "" {
			return nil, nil, &TransactionError{Kind: TxReverted, Method: method, Reason: reason, Err: err}
		}
		return nil, nil, &TransactionError{Kind: TxRejected, Method: method, Err: err}
	}

	waitCtx, cancel := context.WithTimeout(ctx, self.config.ConfirmationTimeout)
	defer cancel()

	receipt, err = bind.WaitMined(waitCtx, client, tx)
	if err != nil {
		return nil, nil, &TransactionError{
			Kind:   TxTimeout,
			Method: method,
			Hash:   tx.Hash().Hex(),
			Err:    err,
		}
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return nil, nil, &TransactionError{
			Kind:   TxReverted,
			Method: method,
			Hash:   tx.Hash().Hex(),
			Reason: "transaction reverted on chain",
		}
	}

	return receipt, DecodeEvents(receipt, contractABI), nil
}

// CodeExistsAt reports whether the address holds contract bytecode.
// Positive answers are memoized, code never disappears from an address
// we care about.
func (self *Client) CodeExistsAt(ctx context.Context, address common.Address) (exists bool, err error) {
	key := address.Hex()
	if _, found := self.codeCache.Get(key); found {
		return true, nil
	}

	client, err := self.connection()
	if err != nil {
		return false, err
	}

	self.limiter.Take()

	callCtx, cancel := context.WithTimeout(ctx, self.config.CallTimeout)
	defer cancel()

	code, err := client.CodeAt(callCtx, address, nil)
	if err != nil {
		return false, &ConnectionError{Endpoint: self.config.RpcUrl, Err: err}
	}

	if len(code) == 0 {
		return false, nil
	}

	self.codeCache.Set(key, struct{}{}, cache.NoExpiration)
	return true, nil
}

// DecodeEvents parses every receipt log that matches an event in the
// given ABI. Logs from other contracts or unknown events are skipped.
func DecodeEvents(receipt *types.Receipt, contractABI *abi.ABI) (out []DecodedEvent) {
	for _, log := range receipt.Logs {
		if len(log.Topics) == 0 {
			continue
		}
		event, err := contractABI.EventByID(log.Topics[0])
		if err != nil {
			continue
		}

		args := map[string]interface{}{}
		if len(log.Data) > 0 {
			err = contractABI.UnpackIntoMap(args, event.Name, log.Data)
			if err != nil {
				continue
			}
		}

		var indexed abi.Arguments
		for _, arg := range event.Inputs {
			if arg.Indexed {
				indexed = append(indexed, arg)
			}
		}
		if len(indexed) > 0 {
			err = abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:])
			if err != nil {
				continue
			}
		}

		out = append(out, DecodedEvent{Name: event.Name, Args: args})
	}
	return
}

// EventFromReceipt finds the first occurence of the named event in the
// receipt. Returns ErrEventNotFound when the log is missing, callers
// treat that as a failed operation even though the transaction mined.
func EventFromReceipt(receipt *types.Receipt, contractABI *abi.ABI, name string) (args map[string]interface{}, err error) {
	for _, event := range DecodeEvents(receipt, contractABI) {
		if event.Name == name {
			return event.Args, nil
		}
	}
	return nil, ErrEventNotFound
}

// revertReason digs the ABI-encoded revert string out of an RPC error,
// empty when the error carries none.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			data := common.FromHex(hexData)
			if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
				return reason
			}
		}
	}

	msg := err.Error()
	idx := strings.Index(msg, "execution reverted")
	if idx < 0 {
		return ""
	}
	reason := strings.TrimPrefix(msg[idx:], "execution reverted")
	reason = strings.TrimLeft(reason, ": ")
	return reason
}
