package store

import "time"

// TransactionType classifies a chip ledger entry. Only the settlement
// pipeline writes GameStake/GameWin/GameLoss in this service; the rest of
// the enum is accepted so account-service imports replay cleanly.
type TransactionType string

const (
	TxGameStake       TransactionType = "GameStake"
	TxGameWin         TransactionType = "GameWin"
	TxGameLoss        TransactionType = "GameLoss"
	TxDailyBonus      TransactionType = "DailyBonus"
	TxLevelUpBonus    TransactionType = "LevelUpBonus"
	TxReferralBonus   TransactionType = "ReferralBonus"
	TxPurchase        TransactionType = "Purchase"
	TxGiftSent        TransactionType = "GiftSent"
	TxGiftReceived    TransactionType = "GiftReceived"
	TxAdminAdjustment TransactionType = "AdminAdjustment"
)

// GameStatus is the lifecycle of a GameHistory row.
type GameStatus string

const (
	StatusInProgress GameStatus = "InProgress"
	StatusCompleted  GameStatus = "Completed"
	StatusCancelled  GameStatus = "Cancelled"
	StatusTimeout    GameStatus = "Timeout"
)

// User is the persistent account row. Balance and ELO change only through
// the settlement pipeline; Version guards concurrent updates.
type User struct {
	ID          string
	Username    string
	DisplayName string
	ChipBalance int64
	EloScore    int
	HighestElo  int
	GamesPlayed int
	GamesWon    int
	IsActive    bool
	IsBot       bool
	Version     int64
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// WinRate is games won over games played, 0 for a fresh account.
func (u *User) WinRate() float64 {
	if u.GamesPlayed == 0 {
		return 0
	}
	return float64(u.GamesWon) / float64(u.GamesPlayed)
}

// PlayerResult is one seat's outcome, embedded as JSON in GameHistory.
type PlayerResult struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Seat        int    `json:"seat"`
	IsBot       bool   `json:"isBot"`
	IsWinner    bool   `json:"isWinner"`
	Score       int    `json:"score"`
	EloDelta    int    `json:"eloDelta"`
	ChipsDelta  int64  `json:"chipsDelta"`
}

// GameHistory is the completed-game summary. ServerSeed, InitialState and
// Nonce stay empty until the room reveals them at termination so the
// commitment can be verified offline.
type GameHistory struct {
	ID             string
	RoomID         string
	StartedAt      time.Time
	EndedAt        time.Time // zero while in progress
	Status         GameStatus
	WinnerID       string // empty for draws and cancellations
	WinType        string
	WinScore       int
	TableStake     int64
	Rake           int64
	PlayerResults  []PlayerResult
	ServerSeedHash string
	ServerSeed     string
	InitialState   string
	ClientSeed     string
	Nonce          uint64
}

// ChipTransaction is an immutable ledger entry.
type ChipTransaction struct {
	ID              string
	UserID          string
	GameHistoryID   string // empty for non-game transactions
	Type            TransactionType
	Amount          int64
	BalanceBefore   int64
	BalanceAfter    int64
	Description     string
	ReferenceNumber string
	IdempotencyKey  string // empty means no key
	CreatedAt       time.Time
}
