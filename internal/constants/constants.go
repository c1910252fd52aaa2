package constants

import "time"

// Tip jar program
const (
	// TipJarProgramID is the deployed tip jar program address.
	TipJarProgramID = "EhoANy4H2iyrU49xLvyKzBcvbwkfhEURLeYMrbse8RTo"

	// FeeAccount receives the protocol fee cut of every donation.
	FeeAccount = "GgbVs9nBVxwNKFK6ipf64fV5ALcbAkd3asCM7dcbpYPd"

	// TipJarSeed is the PDA seed prefix for tip jar accounts.
	TipJarSeed = "tipjar"
)

// FeeRate is the protocol fee taken from every donation.
// The on-chain program splits a donation into 10% fee + 90% tip, so the gross
// amount is recovered from the net credit as net / (1 - FeeRate).
const FeeRate = 0.10

// jsonParsed `program` field values
const (
	ParsedProgramSystem    = "system"
	ParsedProgramToken     = "spl-token"
	ParsedProgramToken2022 = "spl-token-2022"
)

// Token program addresses, used with getParsedTokenAccountsByOwner.
const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// LamportsPerSol scales lamports to whole SOL.
const LamportsPerSol = 1_000_000_000

// DustThresholdSol is the minimum SOL movement treated as a real transfer.
// Anything below this is assumed to be fee noise, not a payment.
const DustThresholdSol = 0.0001

// Fetch limits and pacing
const (
	// SignatureFetchLimit caps the signature list for the donation feed.
	SignatureFetchLimit = 1000

	// ParsedTxFetchLimit caps how many transactions the generic
	// classification path parses per query.
	ParsedTxFetchLimit = 50

	// ParsedTxBatchSize / ParsedTxBatchDelay pace getTransaction calls on the
	// generic path to stay under public RPC quotas. The donation path runs
	// fully concurrent; that asymmetry is inherited behavior.
	ParsedTxBatchSize  = 10
	ParsedTxBatchDelay = 200 * time.Millisecond
)

// Retry policy for transient RPC failures. Rate-limit errors are never retried.
const (
	MaxFetchRetries = 2
	RetryBaseDelay  = 1 * time.Second
	RetryMaxDelay   = 30 * time.Second
)

// Redis keys
const (
	RedisKeyFeedPrefix = "donations:feed:"
	RedisKeyGenPrefix  = "donations:gen:"
)

// FeedFreshness is how long a cached donation feed stays fresh.
const FeedFreshness = 30 * time.Second

// Redis Pub/Sub channels
const (
	PubSubChannelDonations = "donations:live"
)

// KnownTokens maps mints to display symbols for tokens that do not expose a
// symbol in parsed account data (mostly Token-2022 mints).
var KnownTokens = map[string]string{
	"JjxRUwLTVgrdePm8QnfzEsbXVdTHS46LKJszEdD1zuV":  "TJT", // Tip Jar Token
	"So11111111111111111111111111111111111111112":  "SOL",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": "BONK",
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  "JUP",
}
