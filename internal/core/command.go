package core

// CommandKind describes what the session wants to do.
type CommandKind int

const (
	// CommandSend posts a chat line to the caller's channel.
	CommandSend CommandKind = iota
	// CommandEmpty is a blank input line.
	CommandEmpty
	// CommandLogin signs up or signs in.
	CommandLogin
	// CommandJoin takes a seat in a channel.
	CommandJoin
	// CommandLeave gives up the current seat.
	CommandLeave
	// CommandSavePlace toggles the seat reservation policy.
	CommandSavePlace
	// CommandUsers lists the members of the caller's channel.
	CommandUsers
	// CommandActiveUsers lists every connected session.
	CommandActiveUsers
	// CommandBye closes the connection.
	CommandBye
	// CommandInvalid is a recognised command with bad arguments.
	CommandInvalid
)

var commandNames = map[CommandKind]string{
	CommandSend:        "send",
	CommandEmpty:       "empty",
	CommandLogin:       "login",
	CommandJoin:        "join",
	CommandLeave:       "leave",
	CommandSavePlace:   "saveplace",
	CommandUsers:       "users",
	CommandActiveUsers: "activeusers",
	CommandBye:         "bye",
	CommandInvalid:     "invalid",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command represents an action requested by a session.
type Command struct {
	Kind     CommandKind
	Login    string
	Password string
	Channel  string
	// Reserve is the requested seat reservation policy for CommandSavePlace.
	Reserve bool
	Text    string
	// Err explains why a CommandInvalid was rejected.
	Err *CoreError
}

// NewError builds a domain error; used by parsers outside this package.
func NewError(code, msg string) *CoreError {
	return coreError(code, msg)
}
