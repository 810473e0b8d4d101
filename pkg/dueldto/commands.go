package dueldto

// Command types accepted from the gateway.
const (
	CommandJoinQueue    = "join_queue"
	CommandLeaveQueue   = "leave_queue"
	CommandDisconnect   = "disconnect"
	CommandSubmitAnswer = "submit_answer"
)

// Command is one inbound request relayed by the transport gateway.
// RouteToken identifies the connection that issued it.
type Command struct {
	Type        string  `json:"type"`
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name,omitempty"`
	RouteToken  string  `json:"route_token"`
	SessionID   string  `json:"session_id,omitempty"`
	Selection   string  `json:"selection,omitempty"`
	Latency     float64 `json:"latency,omitempty"`
}
