package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gochat/client/session"
	"gochat/client/transport"
	"gochat/protocol"
)

type emitted struct {
	event   string
	payload any
}

type fakeTransport struct {
	mu      sync.Mutex
	events  []emitted
	emitErr error
}

func (f *fakeTransport) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.events = append(f.events, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) emittedEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.events))
	for i, e := range f.events {
		names[i] = e.event
	}
	return names
}

type fakeSession struct {
	loginResult *session.LoginResult
	loginErr    error
	logoutErr   error
	loginCalls  []string
	logoutCalls []string
}

func (f *fakeSession) Login(_ context.Context, username string) (*session.LoginResult, error) {
	f.loginCalls = append(f.loginCalls, username)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginResult, nil
}

func (f *fakeSession) Logout(_ context.Context, username string) error {
	f.logoutCalls = append(f.logoutCalls, username)
	return f.logoutErr
}

type notice struct {
	level Level
	text  string
}

type fakeView struct {
	screens  []string
	rosters  [][]string
	appended []Message
	loading  []bool
	notices  []notice
}

func (f *fakeView) ShowLoginScreen() { f.screens = append(f.screens, "login") }

func (f *fakeView) ShowChatScreen(user string) { f.screens = append(f.screens, "chat:"+user) }
func (f *fakeView) RenderRoster(users []string) {
	f.rosters = append(f.rosters, append([]string(nil), users...))
}
func (f *fakeView) AppendMessage(msg Message) { f.appended = append(f.appended, msg) }
func (f *fakeView) SetLoading(active bool)    { f.loading = append(f.loading, active) }
func (f *fakeView) Notify(level Level, text string) {
	f.notices = append(f.notices, notice{level: level, text: text})
}

func (f *fakeView) hasNotice(text string) bool {
	for _, n := range f.notices {
		if n.text == text {
			return true
		}
	}
	return false
}

// fakeSource captures the controller's dispatch table so tests can
// deliver events directly.
type fakeSource struct {
	handlers       map[string][]transport.Handler
	onConnect      []func()
	onDisconnect   []func()
	onConnectError []func(error)
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string][]transport.Handler)}
}

func (f *fakeSource) On(event string, h transport.Handler) {
	f.handlers[event] = append(f.handlers[event], h)
}
func (f *fakeSource) OnConnect(fn func())           { f.onConnect = append(f.onConnect, fn) }
func (f *fakeSource) OnDisconnect(fn func())        { f.onDisconnect = append(f.onDisconnect, fn) }
func (f *fakeSource) OnConnectError(fn func(error)) { f.onConnectError = append(f.onConnectError, fn) }

func (f *fakeSource) deliver(t *testing.T, event string, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("Failed to build %s envelope: %v", event, err)
	}
	for _, h := range f.handlers[event] {
		h(env)
	}
}

func newTestController(s *fakeSession) (*Controller, *fakeTransport, *fakeView, *fakeSource) {
	tr := &fakeTransport{}
	view := &fakeView{}
	ctrl := New(tr, s, view)
	src := newFakeSource()
	ctrl.Bind(src)
	return ctrl, tr, view, src
}

func loggedInController(t *testing.T, username string, users []string) (*Controller, *fakeTransport, *fakeView, *fakeSource) {
	t.Helper()
	ctrl, tr, view, src := newTestController(&fakeSession{
		loginResult: &session.LoginResult{Success: true, Username: username, Users: users},
	})
	if err := ctrl.Login(context.Background(), username); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return ctrl, tr, view, src
}

func TestLoginSuccess(t *testing.T) {
	sess := &fakeSession{loginResult: &session.LoginResult{Success: true, Users: []string{"alice"}}}
	ctrl, tr, view, _ := newTestController(sess)

	if err := ctrl.Login(context.Background(), "alice"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if ctrl.Screen() != ScreenLoggedIn {
		t.Errorf("Expected logged_in, got %v", ctrl.Screen())
	}
	if ctrl.CurrentUser() != "alice" {
		t.Errorf("Expected current user alice, got %q", ctrl.CurrentUser())
	}
	roster := ctrl.Roster()
	if len(roster) != 1 || roster[0] != "alice" {
		t.Errorf("Expected roster [alice], got %v", roster)
	}
	events := tr.emittedEvents()
	if len(events) != 1 || events[0] != protocol.EventJoin {
		t.Errorf("Expected a single join emit, got %v", events)
	}
	if len(view.screens) != 1 || view.screens[0] != "chat:alice" {
		t.Errorf("Expected chat screen, got %v", view.screens)
	}
	if !view.hasNotice("Welcome, alice!") {
		t.Errorf("Missing welcome notice, got %v", view.notices)
	}
}

func TestLoginTrimsUsername(t *testing.T) {
	sess := &fakeSession{loginResult: &session.LoginResult{Success: true, Users: []string{"alice"}}}
	ctrl, _, _, _ := newTestController(sess)

	if err := ctrl.Login(context.Background(), "  alice  "); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.loginCalls[0] != "alice" {
		t.Errorf("Expected trimmed username, got %q", sess.loginCalls[0])
	}
	if ctrl.CurrentUser() != "alice" {
		t.Errorf("Expected current user alice, got %q", ctrl.CurrentUser())
	}
}

func TestLoginEmptyUsername(t *testing.T) {
	sess := &fakeSession{}
	ctrl, tr, view, _ := newTestController(sess)

	for _, input := range []string{"", "   ", "\t\n"} {
		if err := ctrl.Login(context.Background(), input); err != ErrEmptyUsername {
			t.Errorf("Login(%q): expected ErrEmptyUsername, got %v", input, err)
		}
	}

	if len(sess.loginCalls) != 0 {
		t.Errorf("Expected no network calls, got %v", sess.loginCalls)
	}
	if ctrl.Screen() != ScreenLoggedOut {
		t.Errorf("Expected logged_out, got %v", ctrl.Screen())
	}
	if len(tr.events) != 0 {
		t.Errorf("Expected no emits, got %v", tr.events)
	}
	if !view.hasNotice("Please enter a username") {
		t.Errorf("Missing validation notice, got %v", view.notices)
	}
}

func TestLoginRejected(t *testing.T) {
	sess := &fakeSession{loginResult: &session.LoginResult{Success: false, Message: "taken"}}
	ctrl, tr, view, _ := newTestController(sess)

	if err := ctrl.Login(context.Background(), "alice"); err != nil {
		t.Fatalf("Rejection should not be an error: %v", err)
	}

	if ctrl.Screen() != ScreenLoggedOut {
		t.Errorf("Expected logged_out after rejection, got %v", ctrl.Screen())
	}
	if !view.hasNotice("taken") {
		t.Errorf("Expected verbatim server message, got %v", view.notices)
	}
	if len(tr.events) != 0 {
		t.Errorf("Expected no emits after rejection, got %v", tr.events)
	}
}

func TestLoginTransportError(t *testing.T) {
	sess := &fakeSession{loginErr: errors.New("connection refused")}
	ctrl, _, view, _ := newTestController(sess)

	if err := ctrl.Login(context.Background(), "alice"); err == nil {
		t.Fatal("Expected error from failed request")
	}
	if ctrl.Screen() != ScreenLoggedOut {
		t.Errorf("Expected logged_out, got %v", ctrl.Screen())
	}
	if !view.hasNotice("Failed to login. Please try again.") {
		t.Errorf("Missing generic failure notice, got %v", view.notices)
	}
	// loading indicator was shown and hidden around the attempt
	if len(view.loading) != 2 || !view.loading[0] || view.loading[1] {
		t.Errorf("Unexpected loading sequence %v", view.loading)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	ctrl, tr, view, src := loggedInController(t, "alice", []string{"alice", "bob"})
	src.deliver(t, protocol.EventNewMessage, protocol.ChatMessage{
		Username: "bob", Message: "hi", Timestamp: protocol.FormatTimestamp(time.Now()),
	})

	sess := ctrl.session.(*fakeSession)
	if err := ctrl.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if ctrl.Screen() != ScreenLoggedOut {
		t.Errorf("Expected logged_out, got %v", ctrl.Screen())
	}
	if ctrl.CurrentUser() != "" {
		t.Errorf("Expected cleared user, got %q", ctrl.CurrentUser())
	}
	if len(ctrl.Roster()) != 0 || len(ctrl.Messages()) != 0 {
		t.Error("Expected roster and message log cleared on logout")
	}
	events := tr.emittedEvents()
	if events[len(events)-1] != protocol.EventLeave {
		t.Errorf("Expected leave emit, got %v", events)
	}
	if len(sess.logoutCalls) != 1 || sess.logoutCalls[0] != "alice" {
		t.Errorf("Expected one logout call for alice, got %v", sess.logoutCalls)
	}
	if view.screens[len(view.screens)-1] != "login" {
		t.Errorf("Expected login screen, got %v", view.screens)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	ctrl, tr, _, _ := loggedInController(t, "alice", []string{"alice"})
	sess := ctrl.session.(*fakeSession)

	if err := ctrl.Logout(context.Background()); err != nil {
		t.Fatalf("First logout failed: %v", err)
	}
	emitsAfterFirst := len(tr.emittedEvents())
	callsAfterFirst := len(sess.logoutCalls)

	// Second logout has no session to act on.
	if err := ctrl.Logout(context.Background()); err != nil {
		t.Fatalf("Second logout failed: %v", err)
	}
	if len(tr.emittedEvents()) != emitsAfterFirst {
		t.Error("Second logout emitted events")
	}
	if len(sess.logoutCalls) != callsAfterFirst {
		t.Error("Second logout issued a network call")
	}
}

func TestLogoutOptimisticOnRequestFailure(t *testing.T) {
	ctrl, _, view, _ := loggedInController(t, "alice", []string{"alice"})
	ctrl.session.(*fakeSession).logoutErr = errors.New("network down")

	if err := ctrl.Logout(context.Background()); err == nil {
		t.Fatal("Expected logout request error to be returned")
	}

	// The local transition is not rolled back.
	if ctrl.Screen() != ScreenLoggedOut {
		t.Errorf("Expected logged_out despite request failure, got %v", ctrl.Screen())
	}
	if !view.hasNotice("Failed to logout") {
		t.Errorf("Missing failure notice, got %v", view.notices)
	}
}

func TestSendMessage(t *testing.T) {
	ctrl, tr, _, _ := loggedInController(t, "alice", []string{"alice"})

	if err := ctrl.SendMessage("  hello world  "); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	last := tr.events[len(tr.events)-1]
	if last.event != protocol.EventSendMessage {
		t.Fatalf("Expected send_message emit, got %q", last.event)
	}
	msg := last.payload.(protocol.ChatMessage)
	if msg.Username != "alice" || msg.Message != "hello world" {
		t.Errorf("Unexpected payload %+v", msg)
	}
	// Not appended locally: only the server echo appends.
	if len(ctrl.Messages()) != 0 {
		t.Errorf("Message log should stay empty until echo, got %v", ctrl.Messages())
	}
}

func TestSendMessageNoops(t *testing.T) {
	// No session yet.
	ctrl, tr, _, _ := newTestController(&fakeSession{})
	if err := ctrl.SendMessage("hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(tr.events) != 0 {
		t.Errorf("Expected no emit without session, got %v", tr.events)
	}

	// Empty text while logged in.
	ctrl, tr, _, _ = loggedInController(t, "alice", []string{"alice"})
	before := len(tr.events)
	if err := ctrl.SendMessage("   "); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(tr.events) != before {
		t.Error("Expected no emit for blank text")
	}
}

func TestMessageEchoRoundTrip(t *testing.T) {
	ctrl, _, view, src := loggedInController(t, "alice", []string{"alice"})

	stamp := protocol.FormatTimestamp(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	src.deliver(t, protocol.EventNewMessage, protocol.ChatMessage{
		Username: "alice", Message: "hello", Timestamp: stamp,
	})

	msgs := ctrl.Messages()
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if !msgs[0].Own {
		t.Error("Echoed own message should have Own=true")
	}
	if msgs[0].Text != "hello" || msgs[0].Username != "alice" {
		t.Errorf("Unexpected message %+v", msgs[0])
	}
	if len(view.appended) != 1 {
		t.Errorf("Expected message forwarded to view, got %v", view.appended)
	}
}

func TestDuplicateMessagesAreNotDeduplicated(t *testing.T) {
	ctrl, _, _, src := loggedInController(t, "alice", []string{"alice"})

	payload := protocol.ChatMessage{Username: "bob", Message: "hi", Timestamp: protocol.FormatTimestamp(time.Now())}
	src.deliver(t, protocol.EventNewMessage, payload)
	src.deliver(t, protocol.EventNewMessage, payload)

	if len(ctrl.Messages()) != 2 {
		t.Errorf("Expected duplicate delivery to be kept, got %d messages", len(ctrl.Messages()))
	}
}

func TestRosterReplacedWholesale(t *testing.T) {
	ctrl, _, view, src := loggedInController(t, "alice", []string{"alice"})

	src.deliver(t, protocol.EventUpdateUserList, protocol.UserList{Users: []string{"alice", "bob"}})

	roster := ctrl.Roster()
	if len(roster) != 2 || roster[0] != "alice" || roster[1] != "bob" {
		t.Errorf("Expected roster [alice bob], got %v", roster)
	}

	// A shrunken list replaces, never merges.
	src.deliver(t, protocol.EventUpdateUserList, protocol.UserList{Users: []string{"bob"}})
	roster = ctrl.Roster()
	if len(roster) != 1 || roster[0] != "bob" {
		t.Errorf("Expected roster [bob], got %v", roster)
	}

	if len(view.rosters) != 3 { // login + two updates
		t.Errorf("Expected 3 roster renders, got %d", len(view.rosters))
	}
}

func TestPresenceSelfSuppression(t *testing.T) {
	_, _, view, src := loggedInController(t, "alice", []string{"alice"})
	noticesBefore := len(view.notices)

	src.deliver(t, protocol.EventUserJoined, protocol.Presence{Username: "alice"})
	if len(view.notices) != noticesBefore {
		t.Errorf("Own join should not notify, got %v", view.notices[noticesBefore:])
	}

	src.deliver(t, protocol.EventUserJoined, protocol.Presence{Username: "bob"})
	if !view.hasNotice("bob joined the chat") {
		t.Errorf("Missing join notice, got %v", view.notices)
	}

	src.deliver(t, protocol.EventUserLeft, protocol.Presence{Username: "alice"})
	if view.hasNotice("alice left the chat") {
		t.Error("Own leave should not notify")
	}
	src.deliver(t, protocol.EventUserLeft, protocol.Presence{Username: "bob"})
	if !view.hasNotice("bob left the chat") {
		t.Errorf("Missing leave notice, got %v", view.notices)
	}
}

func TestPresenceEventsDoNotTouchRoster(t *testing.T) {
	ctrl, _, _, src := loggedInController(t, "alice", []string{"alice"})

	src.deliver(t, protocol.EventUserJoined, protocol.Presence{Username: "bob"})
	roster := ctrl.Roster()
	if len(roster) != 1 || roster[0] != "alice" {
		t.Errorf("user_joined must not mutate the roster, got %v", roster)
	}
}

func TestLoginRosterMessageScenario(t *testing.T) {
	ctrl, _, _, src := loggedInController(t, "alice", []string{"alice"})

	if got := ctrl.Roster(); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("Expected roster [alice], got %v", got)
	}

	src.deliver(t, protocol.EventUpdateUserList, protocol.UserList{Users: []string{"alice", "bob"}})
	if got := ctrl.Roster(); len(got) != 2 {
		t.Fatalf("Expected roster [alice bob], got %v", got)
	}

	stamp := protocol.FormatTimestamp(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	src.deliver(t, protocol.EventNewMessage, protocol.ChatMessage{Username: "bob", Message: "hi", Timestamp: stamp})

	msgs := ctrl.Messages()
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	got := msgs[0]
	if got.Username != "bob" || got.Text != "hi" || got.Own {
		t.Errorf("Unexpected message %+v", got)
	}
	want, _ := time.Parse(time.RFC3339, stamp)
	if !got.Timestamp.Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, got.Timestamp)
	}
}

func TestConnectionLifecycleNotices(t *testing.T) {
	_, _, view, src := newTestController(&fakeSession{})

	for _, f := range src.onConnect {
		f()
	}
	if len(view.loading) != 1 || view.loading[0] {
		t.Errorf("Connect should stop the loading indicator, got %v", view.loading)
	}

	for _, f := range src.onDisconnect {
		f()
	}
	if !view.hasNotice("Connection lost. Trying to reconnect...") {
		t.Errorf("Missing disconnect notice, got %v", view.notices)
	}

	for _, f := range src.onConnectError {
		f(errors.New("refused"))
	}
	if !view.hasNotice("Failed to connect to server") {
		t.Errorf("Missing connect error notice, got %v", view.notices)
	}
}

func TestSendMessageTransportFailure(t *testing.T) {
	ctrl, tr, view, _ := loggedInController(t, "alice", []string{"alice"})
	tr.emitErr = errors.New("not connected")

	if err := ctrl.SendMessage("hello"); err == nil {
		t.Fatal("Expected emit error")
	}
	if !view.hasNotice("Failed to send message") {
		t.Errorf("Missing failure notice, got %v", view.notices)
	}
	// State is unchanged: still logged in, log still empty.
	if ctrl.Screen() != ScreenLoggedIn || len(ctrl.Messages()) != 0 {
		t.Error("Failed send must leave state untouched")
	}
}
