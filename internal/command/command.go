package command

import (
	"strconv"
	"strings"
)

// Kind identifies chat command variants.
type Kind string

const (
	KindStart      Kind = "start"
	KindAddTask    Kind = "addtask"
	KindCancel     Kind = "cancel"
	KindCancelTask Kind = "canceltask"
	KindDone       Kind = "done"
	KindListTasks  Kind = "listtasks"
	KindAddUser    Kind = "adduser"
	KindRemoveUser Kind = "removeuser"
	KindListUsers  Kind = "listusers"
	KindUnknown    Kind = "unknown"
)

// Command is the parsed, tagged form of an inbound chat command. ID carries
// the argument for Done, AddUser and RemoveUser.
type Command struct {
	Kind  Kind
	ID    int64
	Token string
}

// Parse recognizes a leading slash command in text. It returns ok=false for
// plain text, which callers route to an open intake session instead. Both
// "/done 5" and "/done5" are accepted, and a "@botname" mention suffix on the
// command token is stripped.
func Parse(text string) (Command, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, false
	}

	fields := strings.Fields(trimmed)
	token := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	name := strings.TrimPrefix(token, "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}

	switch name {
	case "start":
		return Command{Kind: KindStart, Token: token}, true
	case "addtask":
		return Command{Kind: KindAddTask, Token: token}, true
	case "cancel":
		// Bare /cancel aborts an intake dialogue; with a task id it cancels
		// that task instead.
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			return Command{Kind: KindCancelTask, ID: id, Token: token}, true
		}
		return Command{Kind: KindCancel, Token: token}, true
	case "done":
		return parseWithID(KindDone, token, arg)
	case "listtasks":
		return Command{Kind: KindListTasks, Token: token}, true
	case "adduser":
		return parseWithID(KindAddUser, token, arg)
	case "removeuser":
		return parseWithID(KindRemoveUser, token, arg)
	case "listusers":
		return Command{Kind: KindListUsers, Token: token}, true
	}

	// Compact form: the id glued onto the command name, e.g. "/done5".
	for _, compact := range []struct {
		prefix string
		kind   Kind
	}{
		{"done", KindDone},
		{"cancel", KindCancelTask},
		{"adduser", KindAddUser},
		{"removeuser", KindRemoveUser},
	} {
		if rest, ok := strings.CutPrefix(name, compact.prefix); ok && rest != "" {
			if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
				return Command{Kind: compact.kind, ID: id, Token: token}, true
			}
		}
	}

	return Command{Kind: KindUnknown, Token: token}, true
}

func parseWithID(kind Kind, token, arg string) (Command, bool) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		// Recognized command with a missing or malformed argument; ID stays
		// zero and the dispatcher replies with usage.
		return Command{Kind: kind, Token: token}, true
	}
	return Command{Kind: kind, ID: id, Token: token}, true
}
