// Package protocol defines the wire messages between clients and the
// game server: a JSON envelope carrying a type tag plus a typed payload.
// Message and field names are stable; deployed clients depend on them.
package protocol

import "time"

// Client -> Server intents.
const (
	TypeCreateRoom        = "CreateRoom"
	TypeJoinRoom          = "JoinRoom"
	TypeLeaveRoom         = "LeaveRoom"
	TypeStartGame         = "StartGame"
	TypeStartGameWithBots = "StartGameWithBots"
	TypeDrawTile          = "DrawTile"
	TypeDrawFromDiscard   = "DrawFromDiscard"
	TypeThrowTile         = "ThrowTile"
	TypeDeclareWin        = "DeclareWin"
	TypeSetClientSeed     = "SetClientSeed"
)

// Server -> Client events.
const (
	TypeRoomJoined           = "RoomJoined"
	TypeOnPlayerJoined       = "OnPlayerJoined"
	TypeOnPlayerLeft         = "OnPlayerLeft"
	TypeOnGameStarted        = "OnGameStarted"
	TypeOnGameStateUpdated   = "OnGameStateUpdated"
	TypeOnTileDrawn          = "OnTileDrawn"
	TypeOnOpponentDrewTile   = "OnOpponentDrewTile"
	TypeOnTileDiscarded      = "OnTileDiscarded"
	TypeOnDeckUpdated        = "OnDeckUpdated"
	TypeOnTurnChanged        = "OnTurnChanged"
	TypeOnTurnTimerTick      = "OnTurnTimerTick"
	TypeOnAutoPlayTriggered  = "OnAutoPlayTriggered"
	TypeOnPlayerTimeout      = "OnPlayerTimeout"
	TypeOnGamePhaseChanged   = "OnGamePhaseChanged"
	TypeOnPlayerDisconnected = "OnPlayerDisconnected"
	TypeOnPlayerReconnected  = "OnPlayerReconnected"
	TypeOnReconnected        = "OnReconnected"
	TypeOnRoomLeft           = "OnRoomLeft"
	TypeOnGameEnded          = "OnGameEnded"
	TypeOnError              = "OnError"
)

// Error kinds carried in OnError.
const (
	ErrKindNotFound            = "NotFound"
	ErrKindInvalidPhase        = "InvalidPhase"
	ErrKindNotYourTurn         = "NotYourTurn"
	ErrKindTimeExpired         = "TimeExpired"
	ErrKindInvalidAction       = "InvalidAction"
	ErrKindInsufficientBalance = "InsufficientBalance"
	ErrKindReconnectExpired    = "ReconnectExpired"
	ErrKindInternal            = "Internal"
)

// --- intents ---

type CreateRoom struct {
	Name  string `json:"name"`
	Stake int64  `json:"stake"`
}

type JoinRoom struct {
	RoomID string `json:"roomId"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

type StartGame struct {
	RoomID string `json:"roomId"`
}

type StartGameWithBots struct {
	RoomID     string `json:"roomId"`
	Difficulty string `json:"difficulty"`
}

type DrawTile struct {
	RoomID string `json:"roomId"`
}

type DrawFromDiscard struct {
	RoomID string `json:"roomId"`
}

type ThrowTile struct {
	RoomID string `json:"roomId"`
	TileID int    `json:"tileId"`
}

type DeclareWin struct {
	RoomID        string `json:"roomId"`
	DiscardTileID int    `json:"discardTileId"`
}

type SetClientSeed struct {
	RoomID string `json:"roomId"`
	Seed   string `json:"seed"`
}

// --- shared payload types ---

// Tile is a tile as clients see it.
type Tile struct {
	ID           int    `json:"id"`
	Color        string `json:"color"`
	Value        int    `json:"value"`
	IsFalseJoker bool   `json:"isFalseJoker"`
	IsOkey       bool   `json:"isOkey"`
}

// OpponentView is what a player may know about another seat.
type OpponentView struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Position    int    `json:"position"`
	TileCount   int    `json:"tileCount"`
	IsBot       bool   `json:"isBot"`
	IsConnected bool   `json:"isConnected"`
}

// GameState is the per-player projection: the receiving player's full
// hand and only counts for everyone else.
type GameState struct {
	RoomID            string         `json:"roomId"`
	Phase             string         `json:"phase"`
	TurnPhase         string         `json:"turnPhase"`
	Hand              []Tile         `json:"hand"`
	Opponents         []OpponentView `json:"opponents"`
	Indicator         *Tile          `json:"indicator,omitempty"`
	DiscardTop        *Tile          `json:"discardTop,omitempty"`
	DeckCount         int            `json:"deckCount"`
	DiscardCount      int            `json:"discardCount"`
	CurrentTurnPlayer string         `json:"currentTurnPlayerId"`
	CurrentTurnPos    int            `json:"currentTurnPosition"`
	TurnNumber        int            `json:"turnNumber"`
	CommitmentHash    string         `json:"commitmentHash"`
	ServerTime        time.Time      `json:"serverTime"`
}

// Reveal lets anyone re-derive the commitment after the game.
type Reveal struct {
	GameHistoryID  string `json:"gameHistoryId"`
	ServerSeed     string `json:"serverSeed"`
	InitialState   string `json:"initialState"`
	Nonce          uint64 `json:"nonce"`
	ClientSeed     string `json:"clientSeed,omitempty"`
	CommitmentHash string `json:"commitmentHash"`
}

// --- events ---

type RoomJoined struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Stake              int64  `json:"stake"`
	CurrentPlayerCount int    `json:"currentPlayerCount"`
	MaxPlayers         int    `json:"maxPlayers"`
	IsGameStarted      bool   `json:"isGameStarted"`
}

type OnPlayerJoined struct {
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	Position     int    `json:"position"`
	TotalPlayers int    `json:"totalPlayers"`
}

type OnPlayerLeft struct {
	PlayerID  string    `json:"playerId"`
	Timestamp time.Time `json:"timestamp"`
}

type OnGameStarted struct {
	RoomID         string    `json:"roomId"`
	InitialState   GameState `json:"initialState"`
	ServerSeedHash string    `json:"serverSeedHash"`
}

type OnGameStateUpdated struct {
	State GameState `json:"state"`
}

// OnTileDrawn goes to the drawing player only.
type OnTileDrawn struct {
	Tile        Tile      `json:"tile"`
	FromDiscard bool      `json:"fromDiscard"`
	Timestamp   time.Time `json:"timestamp"`
}

// OnOpponentDrewTile goes to everyone else; it never carries the tile
// unless it came off the public discard pile.
type OnOpponentDrewTile struct {
	PlayerID    string    `json:"playerId"`
	FromDiscard bool      `json:"fromDiscard"`
	Timestamp   time.Time `json:"timestamp"`
}

type OnTileDiscarded struct {
	PlayerID         string    `json:"playerId"`
	TileID           int       `json:"tileId"`
	Tile             Tile      `json:"tile"`
	NextTurnPlayerID string    `json:"nextTurnPlayerId"`
	NextTurnPosition int       `json:"nextTurnPosition"`
	Timestamp        time.Time `json:"timestamp"`
}

type OnDeckUpdated struct {
	RemainingTileCount int `json:"remainingTileCount"`
	DiscardPileCount   int `json:"discardPileCount"`
}

type OnTurnChanged struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Position   int    `json:"position"`
	TimeLeft   int    `json:"timeLeft"`
	TurnNumber int    `json:"turnNumber"`
	TurnPhase  string `json:"turnPhase"`
}

type OnTurnTimerTick struct {
	PlayerID   string `json:"playerId"`
	TimeLeft   int    `json:"timeLeft"`
	IsCritical bool   `json:"isCritical"`
}

type OnAutoPlayTriggered struct {
	PlayerID string `json:"playerId"`
	Reason   string `json:"reason"`
}

type OnPlayerTimeout struct {
	PlayerID   string `json:"playerId"`
	TurnNumber int    `json:"turnNumber"`
}

type OnGamePhaseChanged struct {
	OldPhase string `json:"oldPhase"`
	NewPhase string `json:"newPhase"`
}

type OnPlayerDisconnected struct {
	PlayerID                   string    `json:"playerId"`
	ReconnectionTimeoutSeconds int       `json:"reconnectionTimeoutSeconds"`
	Timestamp                  time.Time `json:"timestamp"`
}

type OnPlayerReconnected struct {
	PlayerID  string    `json:"playerId"`
	Timestamp time.Time `json:"timestamp"`
}

// OnReconnected goes to the reconnecting player with their full view.
type OnReconnected struct {
	RoomID    string    `json:"roomId"`
	GameState GameState `json:"gameState"`
	Message   string    `json:"message"`
}

type OnRoomLeft struct {
	RoomID string `json:"roomId"`
}

// OnGameEnded carries the outcome and the fairness reveal. Cancelled
// games have WinType "Cancelled" and a reason instead of a winner.
type OnGameEnded struct {
	RoomID    string    `json:"roomId"`
	WinnerID  string    `json:"winnerId,omitempty"`
	WinType   string    `json:"winType"`
	WinScore  int       `json:"winScore"`
	Reason    string    `json:"reason,omitempty"`
	Reveal    Reveal    `json:"reveal"`
	Timestamp time.Time `json:"timestamp"`
}

type OnError struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
