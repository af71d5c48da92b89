package model

// Mode selects paper or real execution for a session.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeReal  Mode = "real"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusNone    Status = "none"
	StatusCreated Status = "created"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// SessionConfig is the configuration submitted when creating a session.
type SessionConfig struct {
	Symbol         string  `json:"symbol" yaml:"symbol"`
	Timeframe      string  `json:"timeframe" yaml:"timeframe"`
	Strategy       string  `json:"strategy" yaml:"strategy"`
	InitialDeposit float64 `json:"initial_deposit" yaml:"initial_deposit"`
	FeeRate        float64 `json:"fee_rate" yaml:"fee_rate"`
	SlippageBps    float64 `json:"slippage_bps" yaml:"slippage_bps"`
	Mode           Mode    `json:"mode" yaml:"mode"`
}

// Position is an open position reported in a state update.
type Position struct {
	Side       Side    `json:"side"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
}

// SessionState is the account/position snapshot the server reports through
// state_update frames and GET /sessions/{id}.
type SessionState struct {
	Equity       float64   `json:"equity"`
	Balance      float64   `json:"balance"`
	Position     *Position `json:"position,omitempty"`
	RecentTrades []Trade   `json:"recent_trades"`
}

// Summary holds metrics derived from the initial deposit and recent trades.
type Summary struct {
	ReturnPct  float64 `json:"return_pct"`
	TradeCount int     `json:"trade_count"`
	WinRate    float64 `json:"win_rate"`
}
