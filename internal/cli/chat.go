package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/vedran77/blink/internal/chat"
	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/internal/idle"
	"github.com/vedran77/blink/internal/realtime"
	"github.com/vedran77/blink/internal/service"
	"github.com/vedran77/blink/internal/transport/ws"
	"github.com/vedran77/blink/pkg/validator"
)

const chatHelp = `Commands:
  /users                 list users
  /open <user>           talk to <user>; plain lines are sent to them
  /send <user> <text>    send one message
  /history [user]        show messages, optionally with one user
  /read <user>           mark messages from <user> as read
  /unread                number of users waiting for a reply
  /block <user>          hide <user> and their messages
  /unblock <user>        undo /block
  /blocked               list blocked users
  /report <user> <why>   report <user>
  /quit                  leave`

func NewChatCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			userID, err := e.userID()
			if err != nil {
				return err
			}
			if err := e.connect(cmd.Context()); err != nil {
				return err
			}
			defer e.close()

			svc := service.NewProfileService(e.profiles, service.NewNicknameService(e.profiles, e.log))
			if _, err := svc.Get(cmd.Context(), userID.String()); err != nil {
				return fmt.Errorf("%w: run `blink profile set --nickname <name>` first", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			feed := e.startFeed(ctx, userID)
			clock := clockwork.NewRealClock()
			engine := chat.NewEngine(chat.Deps{
				Profiles: e.profiles,
				Messages: e.messages,
				Blocks:   e.blocks,
				Reports:  e.reports,
				Feed:     feed,
				Clock:    clock,
				Log:      e.log,
			}, chat.WithHeartbeatInterval(e.cfg.HeartbeatEvery), chat.WithRefreshWindow(e.cfg.RefreshWindow))
			defer engine.Reset()

			out := cmd.OutOrStdout()
			s := newChatSession(engine, out, clock)
			defer engine.OnMessagesChanged(s.announce)()

			if err := engine.Init(ctx, userID.String()); err != nil {
				return err
			}
			s.greet()

			idleTimer := idle.New(clock, e.cfg.IdleTimeout, func() {
				engine.Reset()
				s.println(color.Yellow.Sprint("Signed out after inactivity."))
				cancel()
			})
			defer idleTimer.Stop()

			lines := readLines(cmd.InOrStdin())
			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					idleTimer.Touch()
					if s.handle(ctx, line) {
						return nil
					}
				}
			}
		},
	}
}

// startFeed connects to the relay server when one is configured and falls
// back to listening on the database directly.
func (e *env) startFeed(ctx context.Context, userID uuid.UUID) realtime.Feed {
	if e.cfg.RealtimeURL != "" {
		feed := ws.NewRemoteFeed(e.cfg.RealtimeURL, e.tokens(userID), e.log)
		go feed.Run(ctx)
		return feed
	}
	listener := realtime.NewListener(e.pool, e.log)
	go listener.Run(ctx)
	return listener
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// chatEngine is the part of *chat.Engine the session drives.
type chatEngine interface {
	CurrentUserID() string
	Messages() []domain.Message
	Users() []domain.UserPresence
	BlockedUsers() []string
	IsBlocked(id string) bool
	UnreadSendersCount() int
	SendMessage(ctx context.Context, receiverID, content string) error
	MarkMessagesAsRead(ctx context.Context, senderID string) error
	BlockUser(ctx context.Context, id string) error
	UnblockUser(ctx context.Context, id string) error
	ReportUser(ctx context.Context, id, reason string) error
}

type chatSession struct {
	engine chatEngine
	out    io.Writer
	clock  clockwork.Clock

	mu   sync.Mutex
	peer string
	seen map[uuid.UUID]struct{}
}

func newChatSession(e chatEngine, out io.Writer, clock clockwork.Clock) *chatSession {
	return &chatSession{engine: e, out: out, clock: clock, seen: make(map[uuid.UUID]struct{})}
}

func (s *chatSession) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, line)
}

func (s *chatSession) greet() {
	s.mu.Lock()
	for _, m := range s.engine.Messages() {
		s.seen[m.ID] = struct{}{}
	}
	s.mu.Unlock()

	s.println(color.Green.Sprintf("Signed in as %s. %d conversation(s) waiting. Type /help for commands.",
		s.engine.CurrentUserID(), s.engine.UnreadSendersCount()))
}

// announce prints incoming messages that have not been shown yet.
func (s *chatSession) announce(messages []domain.Message) {
	self := s.engine.CurrentUserID()
	if self == "" {
		return
	}
	names := s.names()
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range messages {
		if _, ok := s.seen[m.ID]; ok {
			continue
		}
		s.seen[m.ID] = struct{}{}
		if m.SenderID != self {
			fmt.Fprintln(s.out, formatMessage(m, self, names, now))
		}
	}
}

func (s *chatSession) names() map[string]string {
	names := make(map[string]string)
	for _, u := range s.engine.Users() {
		names[u.ID] = u.Nickname
	}
	return names
}

// resolve maps a nickname or user ID typed by the user to a user ID.
func (s *chatSession) resolve(who string) (string, bool) {
	if who == "" {
		return "", false
	}
	for _, u := range s.engine.Users() {
		if u.ID == who || strings.EqualFold(u.Nickname, who) {
			return u.ID, true
		}
	}
	if validator.IsUUID(who) {
		return who, true
	}
	return "", false
}

// parseCommand splits "/send bob hi there" into ("send", "bob", "hi there").
// Lines without a leading slash come back as text only.
func parseCommand(line string) (name, target, text string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", "", line
	}
	fields := strings.SplitN(strings.TrimPrefix(line, "/"), " ", 3)
	name = strings.ToLower(fields[0])
	if len(fields) > 1 {
		target = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		text = strings.TrimSpace(fields[2])
	}
	return name, target, text
}

// handle runs one input line and reports whether the session should end.
func (s *chatSession) handle(ctx context.Context, line string) (quit bool) {
	name, target, text := parseCommand(line)

	switch name {
	case "":
		if text == "" {
			return false
		}
		s.mu.Lock()
		peer := s.peer
		s.mu.Unlock()
		if peer == "" {
			s.println("Pick someone with /open <user> first.")
			return false
		}
		s.report(s.engine.SendMessage(ctx, peer, text))

	case "help":
		s.println(chatHelp)

	case "quit", "exit":
		return true

	case "users":
		s.mu.Lock()
		renderUsers(s.out, s.engine.Users(), s.engine.IsBlocked)
		s.mu.Unlock()

	case "open":
		id, ok := s.resolve(target)
		if !ok {
			s.println(color.Red.Sprintf("Unknown user %q", target))
			return false
		}
		s.mu.Lock()
		s.peer = id
		s.mu.Unlock()
		s.history(id)
		s.report(s.engine.MarkMessagesAsRead(ctx, id))

	case "send":
		id, ok := s.resolve(target)
		if !ok {
			s.println(color.Red.Sprintf("Unknown user %q", target))
			return false
		}
		s.report(s.engine.SendMessage(ctx, id, text))

	case "history":
		id, _ := s.resolve(target)
		s.history(id)

	case "read":
		id, ok := s.resolve(target)
		if !ok {
			s.println(color.Red.Sprintf("Unknown user %q", target))
			return false
		}
		s.report(s.engine.MarkMessagesAsRead(ctx, id))

	case "unread":
		s.println(fmt.Sprintf("%d user(s) waiting for a reply", s.engine.UnreadSendersCount()))

	case "block", "unblock":
		id, ok := s.resolve(target)
		if !ok {
			s.println(color.Red.Sprintf("Unknown user %q", target))
			return false
		}
		if name == "block" {
			s.report(s.engine.BlockUser(ctx, id))
		} else {
			s.report(s.engine.UnblockUser(ctx, id))
		}

	case "blocked":
		names := s.names()
		blocked := s.engine.BlockedUsers()
		if len(blocked) == 0 {
			s.println("Nobody is blocked.")
		}
		for _, id := range blocked {
			s.println(nameOf(id, names))
		}

	case "report":
		id, ok := s.resolve(target)
		if !ok {
			s.println(color.Red.Sprintf("Unknown user %q", target))
			return false
		}
		if errs := validator.ValidateReport(text); errs.HasErrors() {
			s.println(color.Red.Sprint(errs["reason"]))
			return false
		}
		s.report(s.engine.ReportUser(ctx, id, text))

	default:
		s.println(color.Red.Sprintf("Unknown command /%s, try /help", name))
	}
	return false
}

// history prints messages exchanged with peer, or all of them when peer is "".
func (s *chatSession) history(peer string) {
	self := s.engine.CurrentUserID()
	names := s.names()
	now := s.clock.Now()

	messages := s.engine.Messages()
	if peer != "" {
		messages = slices.DeleteFunc(messages, func(m domain.Message) bool { return !m.Involves(peer) })
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(messages) == 0 {
		fmt.Fprintln(s.out, "No messages.")
		return
	}
	for _, m := range messages {
		s.seen[m.ID] = struct{}{}
		fmt.Fprintln(s.out, formatMessage(m, self, names, now))
	}
}

func (s *chatSession) report(err error) {
	if err != nil {
		s.println(color.Red.Sprint(err.Error()))
	}
}
