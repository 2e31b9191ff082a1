package core

import (
	"context"
	"errors"
)

// Dispatch executes one command on behalf of s and queues the replies in its
// outbox. Domain errors become a single error reply; the returned error is
// only set when the reply could not be queued. closeConn is true after bye.
func (h *Hub) Dispatch(ctx context.Context, s *Session, cmd Command) (closeConn bool, err error) {
	h.log.Debug().Str("session_id", s.ID).Stringer("command", cmd.Kind).Msg("dispatch")

	var replies []*Event
	switch cmd.Kind {
	case CommandBye:
		return true, nil

	case CommandEmpty:
		replies = append(replies, noticeEvent("Please type something."))

	case CommandInvalid:
		replies = append(replies, errorEvent(cmd.Err))

	case CommandLogin:
		outcome, authErr := h.Authenticate(ctx, s, cmd.Login, cmd.Password)
		if authErr != nil {
			replies = append(replies, failure(authErr))
			break
		}
		replies = append(replies, authReplies(outcome)...)

	case CommandJoin:
		history, joinErr := h.Join(s, cmd.Channel)
		if joinErr != nil {
			replies = append(replies, failure(joinErr))
			break
		}
		replies = append(replies,
			&Event{Kind: EventUserJoined, Channel: cmd.Channel, User: s.User().Login},
			&Event{Kind: EventHistory, Channel: cmd.Channel, History: history},
		)

	case CommandLeave:
		name, leaveErr := h.Leave(s)
		if leaveErr != nil {
			replies = append(replies, failure(leaveErr))
			break
		}
		replies = append(replies, noticeEvent("You left chat channel "+name))

	case CommandSavePlace:
		h.SetSeatReservation(cmd.Reserve)
		if cmd.Reserve {
			replies = append(replies, noticeEvent("Seat reservation is on."))
		} else {
			replies = append(replies, noticeEvent("Seat reservation is off."))
		}

	case CommandUsers:
		name, logins, membersErr := h.Members(s)
		if membersErr != nil {
			replies = append(replies, failure(membersErr))
			break
		}
		replies = append(replies, &Event{Kind: EventMembers, Channel: name, Names: logins})

	case CommandActiveUsers:
		replies = append(replies, &Event{Kind: EventActiveSessions, Names: h.ActiveSessions()})

	case CommandSend:
		if sendErr := h.Send(s, cmd.Text); sendErr != nil {
			replies = append(replies, failure(sendErr))
		}
	}

	for _, ev := range replies {
		if err := s.Reply(ctx, ev); err != nil {
			return false, err
		}
	}
	return false, nil
}

func authReplies(outcome *AuthOutcome) []*Event {
	var out []*Event
	switch outcome.Result {
	case AuthSignedUp:
		out = append(out, noticeEvent("You're successfully signed up. Your login is "+outcome.Login))
	case AuthSignedIn:
		out = append(out, noticeEvent("You're successfully signed in. Your login is "+outcome.Login))
	}

	r := outcome.Restore
	if r == nil {
		return out
	}
	if r.Err != nil {
		return append(out, errorEvent(r.Err))
	}
	return append(out,
		&Event{Kind: EventUserJoined, Channel: r.Channel, User: outcome.Login},
		noticeEvent("Restore "+outcome.Login+" in chat channel "+r.Channel),
		&Event{Kind: EventHistory, Channel: r.Channel, History: r.History},
	)
}

func failure(err error) *Event {
	var ce *CoreError
	if errors.As(err, &ce) {
		return errorEvent(ce)
	}
	return errorEvent(coreError(ErrCodeInternal, err.Error()))
}
