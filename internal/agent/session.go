package agent

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the append-only conversation log for one user. It is owned by a
// single caller per turn; the server serializes access per session, so no
// locking happens here.
type Session struct {
	id    string
	turns []Turn
}

func NewSession(id string) *Session {
	return &Session{id: id}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Append(role, content string) {
	s.turns = append(s.turns, Turn{Role: role, Content: content})
}

// Turns returns a copy of the full log, oldest first. The full log is for
// display; only Window feeds the model.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) Len() int {
	return len(s.turns)
}

// Window returns the most recent pairs user/assistant exchanges. Turns beyond
// the window stay in the log but are never replayed into a prompt.
func (s *Session) Window(pairs int) []Turn {
	if pairs <= 0 {
		return nil
	}
	limit := pairs * 2
	if len(s.turns) <= limit {
		return s.Turns()
	}
	out := make([]Turn, limit)
	copy(out, s.turns[len(s.turns)-limit:])
	return out
}
