package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"wfsync/internal/channels"
	"wfsync/lib/sl"
)

const (
	bindCommand  = "/bind"
	startCommand = "/start"

	pollTimeoutSeconds  = 30
	conflictBackoff     = 2 * time.Second
	getUpdatesBackoff   = 5 * time.Second
	pollingConflictCode = 409
)

// Linker is the subset of internal/authsvc.Service the channel needs for
// the "/start <code>" web-registration linking flow. A narrow interface
// keeps this package independent of authsvc's concrete type.
type Linker interface {
	LinkTelegramByCode(code, telegramID string, username *string) (userID string, err error)
}

// AllowlistPersister writes a newly paired identity back to an agent's
// on-disk config, so admitting a sender at runtime survives a restart.
type AllowlistPersister interface {
	AddTelegramAllowedUser(agentID, identity string) error
}

// Channel is the Telegram long-poll transport, built on gotgbot's Bot type.
// It drives its own getUpdates loop rather than gotgbot's Dispatcher/Updater
// so offset advancement and polling-conflict backoff match exactly.
type Channel struct {
	agentID string
	api     *tgbotapi.Bot
	allowed *allowlist
	pairing *pairingGuard
	linker  Linker
	persist AllowlistPersister
	log     *slog.Logger
}

// New constructs a Channel. If allowedUsers is empty, pairing mode is
// entered: a one-time bind code is printed to the operator console and
// "/bind <code>" from any Telegram user admits them to the allowlist.
func New(agentID, botToken string, allowedUsers []string, linker Linker, persist AllowlistPersister, log *slog.Logger) (*Channel, error) {
	api, err := tgbotapi.NewBot(botToken, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}

	al := newAllowlist(allowedUsers)
	var pg *pairingGuard
	if al.isEmpty() {
		pg = newPairingGuard()
		if desc := pg.description(); desc != "" {
			fmt.Println("  " + desc)
		}
	}
	return &Channel{
		agentID: agentID,
		api:     api,
		allowed: al,
		pairing: pg,
		linker:  linker,
		persist: persist,
		log:     log.With(sl.Module("channels.telegram")),
	}, nil
}

func (c *Channel) Name() string { return "telegram" }

func (c *Channel) HealthCheck(ctx context.Context) bool {
	_, err := c.api.GetMe(nil)
	return err == nil
}

// Listen runs the long-poll loop directly against getUpdates until ctx is
// canceled: an offset is advanced before acting on each update, a 409
// polling-conflict response backs off without advancing it, and any other
// failure backs off longer and retries.
func (c *Channel) Listen(ctx context.Context, handler channels.Handler) error {
	c.log.Info("telegram channel listening for messages")

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := c.api.GetUpdates(&tgbotapi.GetUpdatesOpts{
			Offset:         offset,
			Timeout:        pollTimeoutSeconds,
			AllowedUpdates: []string{"message"},
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: (pollTimeoutSeconds + 5) * time.Second,
			},
		})
		if err != nil {
			if isPollingConflict(err) {
				c.log.Warn("telegram polling conflict, backing off", sl.Err(err))
				if !c.sleepOrDone(ctx, conflictBackoff) {
					return nil
				}
				continue
			}
			c.log.Warn("telegram getUpdates failed, backing off", sl.Err(err))
			if !c.sleepOrDone(ctx, getUpdatesBackoff) {
				return nil
			}
			continue
		}

		for _, upd := range updates {
			offset = upd.UpdateId + 1
			c.onUpdate(handler, upd)
		}
	}
}

func (c *Channel) sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// isPollingConflict reports whether err is Telegram's 409 "terminated by
// other getUpdates request" response, which means another process is
// polling the same bot token and this loop should back off without
// consuming the conflicting offset.
func isPollingConflict(err error) bool {
	var tgErr *tgbotapi.TgBotApiError
	if errors.As(err, &tgErr) {
		return tgErr.ErrorCode == pollingConflictCode
	}
	return strings.Contains(err.Error(), "409")
}

// onUpdate adapts one getUpdates update into a channels.ChannelMessage,
// gating on the allowlist and handling /bind and /start linking before
// anything reaches the orchestrator handler.
func (c *Channel) onUpdate(handler channels.Handler, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Text == "" {
		return
	}
	chatID := strconv.FormatInt(msg.Chat.Id, 10)

	username := "unknown"
	var userID string
	if msg.From != nil {
		if msg.From.Username != "" {
			username = msg.From.Username
		}
		userID = strconv.FormatInt(msg.From.Id, 10)
	}

	identities := []string{username}
	if userID != "" {
		identities = append(identities, userID)
	}
	if !c.allowed.isAnyAllowed(identities...) {
		c.handleUnauthorizedMessage(context.Background(), msg.Text, chatID, username, userID)
		return
	}

	c.sendTyping(chatID)

	channelMsg := channels.ChannelMessage{
		ChatID:    chatID,
		SenderID:  userID,
		Text:      msg.Text,
		MessageID: deterministicMessageID(chatID, msg.MessageId),
	}
	reply, err := handler(context.Background(), channelMsg)
	if err != nil {
		c.log.Warn("telegram handler error", sl.Err(err), "chat_id", chatID)
		return
	}
	if reply != "" {
		if err := c.Send(context.Background(), channels.SendMessage{ChatID: chatID, Text: reply}); err != nil {
			c.log.Warn("telegram send reply failed", sl.Err(err))
		}
	}
}

// deterministicMessageID gives every inbound turn a stable id derived from
// chat and message id, so downstream persistence (conversation history,
// dedup) is idempotent across retried deliveries.
func deterministicMessageID(chatID string, messageID int64) string {
	return fmt.Sprintf("telegram_%s_%d", chatID, messageID)
}

func (c *Channel) sendTyping(chatID string) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return
	}
	_, _ = c.api.SendChatAction(id, "typing", nil)
}

// handleUnauthorizedMessage processes a message from a sender not on the
// allowlist: it may be a "/bind <code>" pairing attempt or a "/start
// <code>" web-linking attempt, both of which admit the sender without
// requiring they already be allowed.
func (c *Channel) handleUnauthorizedMessage(ctx context.Context, text, chatID, username, userID string) {
	// Numeric id preferred over username: usernames can change, the id is
	// the stable identity Telegram guarantees.
	stableIdentity := userID
	if stableIdentity == "" {
		stableIdentity = username
	}

	if code, ok := extractBindCode(text); ok && c.pairing != nil {
		if remaining := c.pairing.lockoutRemaining(); remaining > 0 {
			c.sendText(ctx, chatID, fmt.Sprintf("Too many wrong bind codes. Try again in %d seconds.", int(remaining.Seconds())))
			return
		}
		if c.pairing.tryPair(code) {
			c.admit(stableIdentity)
			c.sendText(ctx, chatID, "You're bound. Send me a message any time.")
		} else if remaining := c.pairing.lockoutRemaining(); remaining > 0 {
			c.sendText(ctx, chatID, fmt.Sprintf("Too many wrong bind codes. Try again in %d seconds.", int(remaining.Seconds())))
		} else {
			c.sendText(ctx, chatID, "Invalid or already-used bind code.")
		}
		return
	}

	if code, ok := extractStartCode(text); ok && c.linker != nil {
		var usernamePtr *string
		if username != "unknown" && username != "" {
			usernamePtr = &username
		}
		if _, err := c.linker.LinkTelegramByCode(code, userID, usernamePtr); err != nil {
			c.sendText(ctx, chatID, "That link code is invalid or has expired. Generate a new one from the web app.")
			return
		}
		c.admit(stableIdentity)
		c.sendText(ctx, chatID, "Your Telegram account is now linked.")
		return
	}

	if strings.TrimSpace(text) == startCommand {
		c.sendText(ctx, chatID, "Welcome. Register at the web app and use /start <code> from your profile to link this account.")
		return
	}

	if c.pairing != nil {
		if code, ok := c.pairing.pairingCode(); ok {
			c.sendText(ctx, chatID, fmt.Sprintf(
				"You're not authorized yet. Ask the operator to run /bind %s, or send it yourself if you have the code.", code))
			return
		}
	}
	c.sendText(ctx, chatID, "You're not authorized to use this bot. Contact the operator to be added to the allowlist.")
}

// admit adds identity to the in-process allowlist and persists it to the
// agent's on-disk config, so the pairing survives a process restart.
func (c *Channel) admit(identity string) {
	c.allowed.add(identity)
	if c.persist == nil {
		return
	}
	if err := c.persist.AddTelegramAllowedUser(c.agentID, normalizeIdentity(identity)); err != nil {
		c.log.Warn("telegram: persist paired identity failed", sl.Err(err), "agent_id", c.agentID)
	}
}

func extractBindCode(text string) (string, bool) {
	return extractCommandArg(text, bindCommand)
}

func extractStartCode(text string) (string, bool) {
	return extractCommandArg(text, startCommand)
}

func extractCommandArg(text, command string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	base := fields[0]
	if i := strings.IndexByte(base, '@'); i >= 0 {
		base = base[:i]
	}
	if base != command {
		return "", false
	}
	if len(fields) < 2 || strings.TrimSpace(fields[1]) == "" {
		return "", false
	}
	return fields[1], true
}

func (c *Channel) sendText(ctx context.Context, chatID, text string) {
	_ = c.Send(ctx, channels.SendMessage{ChatID: chatID, Text: text})
}

// Send implements the egress pipeline: strip tool-call tags, extract
// attachment markers, then send text (if any) followed by attachments; a
// message that is a single bare path/URL with a recognized extension goes
// out as an attachment with no accompanying text.
func (c *Channel) Send(ctx context.Context, msg channels.SendMessage) error {
	content := stripToolCallTags(msg.Text)
	textWithoutMarkers, attachments := parseAttachmentMarkers(content)

	if len(attachments) > 0 {
		if textWithoutMarkers != "" {
			if err := c.sendTextChunks(ctx, msg.ChatID, textWithoutMarkers); err != nil {
				return err
			}
		}
		for _, a := range attachments {
			if err := c.sendAttachment(ctx, msg.ChatID, a); err != nil {
				return err
			}
		}
		return nil
	}

	if a, ok := parsePathOnlyAttachment(content, fileExists); ok {
		return c.sendAttachment(ctx, msg.ChatID, a)
	}

	return c.sendTextChunks(ctx, msg.ChatID, content)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// sendTextChunks sends message as one or more sendMessage calls, each
// attempted first with Markdown parse_mode and, on failure, retried
// plain — Telegram 400s on malformed Markdown, and falling back to plain
// text keeps the reply deliverable rather than dropped.
func (c *Channel) sendTextChunks(_ context.Context, chatID, message string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}

	chunks := splitMessage(message)
	for i, chunk := range chunks {
		text := continuationText(chunk, i, len(chunks))

		if _, sendErr := c.api.SendMessage(id, text, &tgbotapi.SendMessageOpts{ParseMode: "Markdown"}); sendErr != nil {
			if _, retryErr := c.api.SendMessage(id, text, nil); retryErr != nil {
				return fmt.Errorf("telegram: sendMessage failed for chat %s: %w", chatID, retryErr)
			}
		}
		if i < len(chunks)-1 {
			time.Sleep(100 * time.Millisecond)
		}
	}
	return nil
}

// sendAttachment dispatches to the gotgbot send method matching the
// attachment's kind, treating target as a URL (passed straight through,
// Telegram fetches it server-side) or a local file path (opened and
// streamed as the upload body).
func (c *Channel) sendAttachment(_ context.Context, chatID string, a Attachment) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}

	file, err := inputFileFor(a.Target)
	if err != nil {
		return err
	}

	switch a.Kind {
	case AttachmentImage:
		_, err = c.api.SendPhoto(id, file, nil)
	case AttachmentVideo:
		_, err = c.api.SendVideo(id, file, nil)
	case AttachmentAudio:
		_, err = c.api.SendAudio(id, file, nil)
	case AttachmentVoice:
		_, err = c.api.SendVoice(id, file, nil)
	default:
		_, err = c.api.SendDocument(id, file, nil)
	}
	if err != nil {
		return fmt.Errorf("telegram: send %s failed for chat %s: %w", a.Kind, chatID, err)
	}
	return nil
}

// inputFileFor resolves an attachment target to a gotgbot InputFile: an
// http(s) URL is handed to Telegram as-is (it fetches server-side), a
// local path is opened and streamed as the upload body.
func inputFileFor(target string) (tgbotapi.InputFile, error) {
	if isHTTPURL(target) {
		return tgbotapi.InputFileByURL(target), nil
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("telegram: open attachment %q: %w", target, err)
	}
	return tgbotapi.InputFileByReader(filepathBase(target), f), nil
}

func filepathBase(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
