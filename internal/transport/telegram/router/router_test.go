package router

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"releasebot/internal/access"
	"releasebot/internal/release"
	kit "releasebot/internal/transport"
	logx "releasebot/pkg/logx"
)

type sent struct {
	to   int64
	text string
	opt  *kit.SendOptions
}

type recSender struct {
	mu  sync.Mutex
	out []sent
	ch  chan sent
}

func newRecSender() *recSender { return &recSender{ch: make(chan sent, 16)} }

func (s *recSender) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	m := sent{to: to.ChatID, text: text, opt: opt}
	s.mu.Lock()
	s.out = append(s.out, m)
	s.mu.Unlock()
	s.ch <- m
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (s *recSender) next(t *testing.T) sent {
	t.Helper()
	select {
	case m := <-s.ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message sent")
		return sent{}
	}
}

type fakeSubs struct {
	mu     sync.Mutex
	ids    map[int64]bool
	addErr error
}

func (f *fakeSubs) Add(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return false, f.addErr
	}
	if f.ids[id] {
		return false, nil
	}
	f.ids[id] = true
	return true, nil
}

func (f *fakeSubs) RemoveAll(_ context.Context, ids []int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range ids {
		if f.ids[id] {
			delete(f.ids, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSubs) snapshot() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for id := range f.ids {
		out = append(out, id)
	}
	return out
}

type fixedRelease struct {
	p     release.Payload
	known bool
}

func (f fixedRelease) Current() (release.Payload, bool) { return f.p, f.known }

func startBot(t *testing.T, deps Deps, admins ...int64) (chan kit.Update, *recSender) {
	t.Helper()
	s := newRecSender()
	r := NewBot(logx.Nop(), s, access.New(admins), deps)
	updates := make(chan kit.Update, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = r.DispatchLoop(ctx, updates); close(done) }()
	t.Cleanup(func() { cancel(); <-done })
	return updates, s
}

func msg(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: from, FromID: from, Text: text}}
}

// Registry {7}; /start from 42 gives {7,42} and a welcome naming the current release.
func TestStartSubscribesAndWelcomes(t *testing.T) {
	subs := &fakeSubs{ids: map[int64]bool{7: true}}
	cur := release.Payload{ID: "ABC_ROM_20180301.zip", DownloadURL: "https://dl/x.zip"}
	updates, s := startBot(t, Deps{Subscribers: subs, Releases: fixedRelease{p: cur, known: true}})

	updates <- msg(42, "/start")
	m := s.next(t)
	if m.to != 42 || !strings.Contains(m.text, "The current release is") || !strings.Contains(m.text, "ABC_ROM_20180301.zip") {
		t.Fatalf("welcome=%+v", m)
	}
	if m.opt == nil || m.opt.ParseMode != "HTML" {
		t.Fatal("welcome should be HTML")
	}
	got := subs.snapshot()
	if len(got) != 2 {
		t.Fatalf("subscribers=%v", got)
	}
}

func TestStartBeforeFirstFetchUsesPlaceholder(t *testing.T) {
	subs := &fakeSubs{ids: map[int64]bool{}}
	updates, s := startBot(t, Deps{Subscribers: subs, Releases: fixedRelease{}})
	updates <- msg(1, "/start@release_bot")
	if m := s.next(t); !strings.Contains(m.text, "not known yet") {
		t.Fatalf("welcome=%q", m.text)
	}
}

func TestStartStillWelcomesOnPersistError(t *testing.T) {
	subs := &fakeSubs{ids: map[int64]bool{}, addErr: errors.New("disk full")}
	updates, s := startBot(t, Deps{Subscribers: subs, Releases: fixedRelease{}})
	updates <- msg(5, "/start")
	m := s.next(t)
	if !strings.HasPrefix(m.text, welcomeHeader) || strings.Contains(m.text, "disk full") {
		t.Fatalf("welcome=%q", m.text)
	}
}

// Allow-list {100}; restart from 200 is refused and nothing restarts.
func TestRestartDeniedForNonAdmin(t *testing.T) {
	restarted := make(chan struct{}, 1)
	deps := Deps{
		Subscribers: &fakeSubs{ids: map[int64]bool{}},
		Releases:    fixedRelease{},
		Restart:     func() { restarted <- struct{}{} },
	}
	updates, s := startBot(t, deps, 100)

	updates <- msg(200, "/r")
	if m := s.next(t); m.text != deniedText {
		t.Fatalf("reply=%q", m.text)
	}
	select {
	case <-restarted:
		t.Fatal("restart must not run for non-admin")
	case <-time.After(50 * time.Millisecond):
	}

	updates <- msg(100, "/r")
	if m := s.next(t); m.text != restartText {
		t.Fatalf("reply=%q", m.text)
	}
	select {
	case <-restarted:
	case <-time.After(2 * time.Second):
		t.Fatal("admin restart did not run")
	}
}

func TestStopUnsubscribes(t *testing.T) {
	subs := &fakeSubs{ids: map[int64]bool{9: true}}
	updates, s := startBot(t, Deps{Subscribers: subs, Releases: fixedRelease{}})
	updates <- msg(9, "/stop")
	if m := s.next(t); m.text != goodbyeText {
		t.Fatalf("reply=%q", m.text)
	}
	if len(subs.snapshot()) != 0 {
		t.Fatal("chat still subscribed")
	}
}

func TestHelpHidesAdminCommands(t *testing.T) {
	updates, s := startBot(t, Deps{Subscribers: &fakeSubs{ids: map[int64]bool{}}, Releases: fixedRelease{}}, 100)
	updates <- msg(1, "/help")
	if m := s.next(t); strings.Contains(m.text, "/status") || !strings.Contains(m.text, "/start") {
		t.Fatalf("help=%q", m.text)
	}
	updates <- msg(100, "/help")
	if m := s.next(t); !strings.Contains(m.text, "/status") {
		t.Fatalf("admin help=%q", m.text)
	}
}

func TestUnknownCommandAndPlainTextIgnored(t *testing.T) {
	updates, s := startBot(t, Deps{Subscribers: &fakeSubs{ids: map[int64]bool{}}, Releases: fixedRelease{}})
	updates <- msg(1, "hello there")
	updates <- msg(1, "/nope")
	updates <- msg(1, "/help")
	if m := s.next(t); !strings.Contains(m.text, "/start") {
		t.Fatalf("first reply should be help, got %q", m.text)
	}
}

// hangSender never returns for chats in hang until ctx ends.
type hangSender struct {
	*recSender
	hang map[int64]bool
}

func (h hangSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if h.hang[to.ChatID] {
		<-ctx.Done()
		return kit.MessageRef{}, ctx.Err()
	}
	return h.recSender.SendText(ctx, to, text, opt)
}

// A stuck denial reply to one chat must not hold up /start for another.
func TestStuckDenialDoesNotStallIntake(t *testing.T) {
	subs := &fakeSubs{ids: map[int64]bool{}}
	s := hangSender{recSender: newRecSender(), hang: map[int64]bool{666: true}}
	r := NewBot(logx.Nop(), s, access.New([]int64{100}), Deps{Subscribers: subs, Releases: fixedRelease{}})
	updates := make(chan kit.Update, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = r.DispatchLoop(ctx, updates); close(done) }()
	t.Cleanup(func() { cancel(); <-done })

	updates <- msg(666, "/r")
	updates <- msg(42, "/start")

	select {
	case m := <-s.ch:
		if m.to != 42 || !strings.HasPrefix(m.text, welcomeHeader) {
			t.Fatalf("reply=%+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("/start not processed while a denial reply hangs")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		name string
		args []string
		ok   bool
	}{
		{"/start", "start", []string{}, true},
		{"/Start@MyBot now", "start", []string{"now"}, true},
		{"  /r  ", "r", []string{}, true},
		{"start", "", nil, false},
		{"/", "", nil, false},
	}
	for _, tt := range tests {
		name, args, ok := parseCommand(tt.in)
		if ok != tt.ok || name != tt.name || (ok && !reflect.DeepEqual(args, tt.args)) {
			t.Fatalf("parseCommand(%q)=(%q,%v,%v)", tt.in, name, args, ok)
		}
	}
}

func TestMenuMarksAdminCommands(t *testing.T) {
	r := NewBot(logx.Nop(), newRecSender(), access.New(nil), Deps{})
	menu := r.Menu()
	var names []string
	for _, c := range menu {
		names = append(names, c.Command)
		if c.Command == "status" && !strings.HasPrefix(c.Description, "🔒") {
			t.Fatalf("status not marked: %q", c.Description)
		}
	}
	if !reflect.DeepEqual(names, []string{"start", "help", "stop", "status", "r"}) {
		t.Fatalf("menu=%v", names)
	}
}

func TestSanitizeCommand(t *testing.T) {
	if got := sanitizeCommand(" Release-Status "); got != "release_status" {
		t.Fatalf("got %q", got)
	}
}
