package websocket

import "encoding/json"

// Frame is one named event with positional arguments, the unit of exchange in
// both directions. Broadcasts also carry their offset in the broadcast log.
type Frame struct {
	Event  string            `json:"event"`
	Args   []json.RawMessage `json:"args"`
	Offset int64             `json:"offset,omitempty"`
}

type outgoing struct {
	Event  string `json:"event"`
	Args   []any  `json:"args"`
	Offset int64  `json:"offset,omitempty"`
}

// EncodeFrame serializes an event for the wire.
func EncodeFrame(event string, args ...any) ([]byte, error) {
	return encodeFrame(event, 0, args)
}

func encodeFrame(event string, offset int64, args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return json.Marshal(outgoing{Event: event, Args: args, Offset: offset})
}

// EventSession opens every connection. Its arguments are the session id and
// the offset the client's view starts from; the client presents both to
// resume after a dropped connection.
const EventSession = "session"
