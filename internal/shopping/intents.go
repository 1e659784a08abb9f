package shopping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Intent is one client request: an intent name and its positional arguments.
type Intent struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args"`
}

// flexInt accepts a JSON number or a numeric string. Ids read from element
// attributes and values read from form inputs arrive as strings.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			*n = 0
			return nil
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", s, err)
	}
	*n = flexInt(v)
	return nil
}

type itemPayload struct {
	ID       flexInt `json:"id"`
	Market   string  `json:"market"`
	Category string  `json:"category"`
	Name     string  `json:"name"`
	Quantity flexInt `json:"quantity"`
	Unit     string  `json:"unit"`
	Price    flexInt `json:"price"`
}

func (p itemPayload) input() ItemInput {
	return ItemInput{
		ID:       int64(p.ID),
		Market:   p.Market,
		Category: p.Category,
		Name:     p.Name,
		Quantity: int64(p.Quantity),
		Unit:     p.Unit,
		Price:    int64(p.Price),
	}
}

func decodeArg(in Intent, v any) error {
	if len(in.Args) == 0 {
		return Invalid(msgMalformedRequest)
	}
	if err := json.Unmarshal(in.Args[0], v); err != nil {
		return &Error{Kind: KindInvalid, Message: "NOT PERMITTED! " + msgMalformedRequest, Err: err}
	}
	return nil
}

func decodeID(in Intent) (int64, error) {
	var id flexInt
	if err := decodeArg(in, &id); err != nil {
		return 0, err
	}
	return int64(id), nil
}

func decodeItem(in Intent) (ItemInput, error) {
	var p itemPayload
	if err := decodeArg(in, &p); err != nil {
		return ItemInput{}, err
	}
	return p.input(), nil
}

// Dispatch runs one intent on behalf of peer. A rejection is sent back to peer
// alone; storage and render failures are only logged. The error is returned
// for callers that want it.
func (s *Service) Dispatch(ctx context.Context, peer Peer, in Intent) error {
	err := s.handle(ctx, peer, in)
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) && e.Rejected() {
		s.logger.Warn("intent rejected", "intent", in.Event, "kind", e.Kind.String(), "reason", e.Message)
		peer.Emit(EventUnpermitted, e.Message)
		return err
	}

	s.logger.Error("intent failed", "intent", in.Event, "kind", KindOf(err).String(), "error", err)
	return err
}

func (s *Service) handle(ctx context.Context, peer Peer, in Intent) error {
	switch in.Event {
	case IntentAdd:
		item, err := decodeItem(in)
		if err != nil {
			return err
		}
		_, err = s.Add(ctx, item)
		return err

	case IntentUpdate:
		item, err := decodeItem(in)
		if err != nil {
			return err
		}
		_, err = s.Update(ctx, item)
		return err

	case IntentBuy, IntentReturn, IntentDelete, IntentEdit, IntentInterruptEdit:
		id, err := decodeID(in)
		if err != nil {
			return err
		}
		switch in.Event {
		case IntentBuy:
			return s.Buy(ctx, id)
		case IntentReturn:
			return s.Return(ctx, id)
		case IntentDelete:
			return s.Delete(ctx, id)
		case IntentInterruptEdit:
			return s.InterruptEdit(ctx, id)
		}
		detail, err := s.BeginEdit(ctx, id)
		if err != nil {
			return err
		}
		peer.Emit(EventEdit, detail)
		return nil

	case IntentClearBoughtList:
		return s.ClearBought(ctx)

	default:
		return Invalid(msgMalformedRequest)
	}
}
