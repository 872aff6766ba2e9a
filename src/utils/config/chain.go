package config

import (
	"time"

	"github.com/spf13/viper"
)

type Chain struct {
	// JSON-RPC endpoint of the Ethereum-compatible node
	RpcUrl string

	// Hex-encoded private key used to sign transactions
	PrivateKey string

	// Deployed factory contract address per network name.
	// A detected network without an entry here is unsupported
	// unless Permissive is set.
	FactoryAddresses map[string]string

	// Accept networks without a configured factory address (test mode)
	Permissive bool

	// Timeout for a single read-only contract call
	CallTimeout time.Duration

	// Max time to wait for a transaction confirmation.
	// Exceeding it means the outcome is unknown, not that the tx failed.
	ConfirmationTimeout time.Duration

	// Max JSON-RPC requests per second
	RpcRequestsPerSecond int

	// Gas limit applied to contract writes
	GasLimit uint64
}

func setChainDefaults() {
	viper.SetDefault("Chain.RpcUrl", "http://localhost:8545")
	viper.SetDefault("Chain.PrivateKey", "")
	viper.SetDefault("Chain.FactoryAddresses", map[string]string{})
	viper.SetDefault("Chain.Permissive", "true")
	viper.SetDefault("Chain.CallTimeout", "10s")
	viper.SetDefault("Chain.ConfirmationTimeout", "90s")
	viper.SetDefault("Chain.RpcRequestsPerSecond", "20")
	viper.SetDefault("Chain.GasLimit", "3000000")
}
