package bridge

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	EventSessionCreated = "SessionCreated"
	EventSessionEnded   = "SessionEnded"
)

// Factory that deploys one contract per voting session.
const factoryABIJSON = `[
	{
		"type": "function",
		"name": "createVoteSession",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "sessionId", "type": "uint256"},
			{"name": "participants", "type": "string[]"},
			{"name": "endTimestamp", "type": "uint256"},
			{"name": "mode", "type": "uint8"},
			{"name": "maxChoices", "type": "uint8"}
		],
		"outputs": [
			{"name": "sessionAddress", "type": "address"}
		]
	},
	{
		"type": "function",
		"name": "sessions",
		"stateMutability": "view",
		"inputs": [
			{"name": "", "type": "uint256"}
		],
		"outputs": [
			{"name": "", "type": "address"}
		]
	},
	{
		"type": "function",
		"name": "getAllSessionIds",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "", "type": "uint256[]"}
		]
	},
	{
		"type": "event",
		"name": "SessionCreated",
		"anonymous": false,
		"inputs": [
			{"name": "sessionId", "type": "uint256", "indexed": true},
			{"name": "sessionAddress", "type": "address", "indexed": false},
			{"name": "creator", "type": "address", "indexed": false}
		]
	}
]`

// Per-session voting contract.
const sessionABIJSON = `[
	{
		"type": "function",
		"name": "vote",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "choices", "type": "string[]"},
			{"name": "ranks", "type": "uint256[]"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getResults",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "participantNames", "type": "string[]"},
			{"name": "voteCounts", "type": "uint256[]"}
		]
	},
	{
		"type": "function",
		"name": "getVoterCount",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "getStatus",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "isActive", "type": "bool"},
			{"name": "remainingTime", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "checkVoted",
		"stateMutability": "view",
		"inputs": [
			{"name": "voter", "type": "address"}
		],
		"outputs": [
			{"name": "", "type": "bool"}
		]
	},
	{
		"type": "function",
		"name": "endSession",
		"stateMutability": "nonpayable",
		"inputs": [],
		"outputs": []
	},
	{
		"type": "event",
		"name": "SessionEnded",
		"anonymous": false,
		"inputs": [
			{"name": "sessionId", "type": "uint256", "indexed": true},
			{"name": "endedAt", "type": "uint256", "indexed": false}
		]
	}
]`

var (
	factoryABI = mustParseABI(factoryABIJSON)
	sessionABI = mustParseABI(sessionABIJSON)
)

func mustParseABI(jsonABI string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(jsonABI))
	if err != nil {
		panic(err)
	}
	return &parsed
}
