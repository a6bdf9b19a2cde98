package conversation

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleCaller Role = "caller"
	RoleBot    Role = "bot"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleCaller || r == RoleBot
}

// Turn is a single utterance in a call. Immutable once appended.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session captures the accumulated state of one active phone call.
// The persona is fixed for the session lifetime; turns only grow.
type Session struct {
	CallSID      string    `json:"callSid"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	PersonaName  string    `json:"personaName"`
	Turns        []Turn    `json:"turns"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Started reports whether the call has produced any turns yet. The webhook
// handler greets the caller on the first event of a call, before any speech.
func (s Session) Started() bool {
	return len(s.Turns) > 0
}

// Stats summarizes a session for the dashboard API.
type Stats struct {
	CallSID         string    `json:"callSid"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	PersonaName     string    `json:"personaName"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActivity    time.Time `json:"lastActivity"`
	TotalTurns      int       `json:"totalTurns"`
	CallerTurns     int       `json:"callerTurns"`
	BotTurns        int       `json:"botTurns"`
	DurationSeconds float64   `json:"durationSeconds"`
}
