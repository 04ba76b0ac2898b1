package duel

// Transport delivers messages to the other peer.
type Transport interface {
	Send(msg Message) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(msg Message) error

// Send calls f(msg).
func (f TransportFunc) Send(msg Message) error {
	return f(msg)
}

// Actuator receives a snapshot after every state change worth showing.
type Actuator interface {
	Actuate(a Actuation)
}

// ActuatorFunc adapts a function to Actuator.
type ActuatorFunc func(a Actuation)

// Actuate calls f(a).
func (f ActuatorFunc) Actuate(a Actuation) {
	f(a)
}

// ScoreKeeper stores the best global score seen on this machine.
type ScoreKeeper interface {
	BestScore() int
	SetBestScore(score int)
}

// Actuation is an immutable view of the game handed to renderers.
type Actuation struct {
	Grid          SerializedGrid
	Scores        []int
	Score         int // global running total
	Over          bool
	Won           bool
	Winners       []int
	BestScore     int
	Terminated    bool
	RoomID        string
	CurrentPlayer int
	Player        int // local player index
	Turn          uint64
	Pending       bool   // waiting for the peer's seed half
	Merged        []Cell // cells holding tiles merged by the last move
	Spawned       *Cell  // cell of the last spawned tile
}

// IsWinner reports whether player is among the winners.
func (a Actuation) IsWinner(player int) bool {
	for _, w := range a.Winners {
		if w == player {
			return true
		}
	}
	return false
}

// MyTurn reports whether the local player may move.
func (a Actuation) MyTurn() bool {
	return !a.Terminated && !a.Pending && a.CurrentPlayer == a.Player
}
