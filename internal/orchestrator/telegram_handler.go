package orchestrator

import (
	"context"
	"errors"

	"wfsync/internal/channels"
	"wfsync/internal/identitystore"
)

// ChannelHandler returns a channels.Handler bound to one agent: it resolves
// the inbound Telegram sender to a platform user id, then runs the same
// HandleChat pipeline the HTTP surface uses. A sender with no linked
// account yet gets a one-line prompt rather than an error — the /start
// <code> flow is how they link.
func (o *Orchestrator) ChannelHandler(agentID string) channels.Handler {
	return func(ctx context.Context, msg channels.ChannelMessage) (string, error) {
		user, err := o.identity.GetUserByTelegramID(msg.SenderID)
		if errors.Is(err, identitystore.ErrNotFound) {
			return "Your Telegram account isn't linked yet. Register at the web app, then send /start <code> from your profile.", nil
		}
		if err != nil {
			return "", err
		}

		reply, err := o.HandleChat(ctx, user.ID, agentID, msg.Text)
		if err != nil {
			return o.describeHandlerError(err), nil
		}
		return reply, nil
	}
}

// describeHandlerError renders a pipeline error as a user-facing channel
// reply instead of propagating it — a channel transport has no HTTP status
// to carry the §7 taxonomy, so it gets a short plain-language reply.
func (o *Orchestrator) describeHandlerError(err error) string {
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		return "Access denied: " + string(denied.Reason) + ". Visit the web app to upgrade your plan."
	}
	switch {
	case errors.Is(err, ErrAgentNotFound):
		return "That agent no longer exists."
	case errors.Is(err, ErrForbidden):
		return "You don't have access to that agent."
	}
	o.log.Error("channel pipeline error", "error", err.Error())
	return "Something went wrong processing your message. Please try again."
}
