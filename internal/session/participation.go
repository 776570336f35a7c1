package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the lifecycle position of one student's attempt.
type State string

const (
	StateNotJoined        State = "NOT_JOINED"
	StateJoined           State = "JOINED"
	StateInProgress       State = "IN_PROGRESS"
	StateSubmitted        State = "SUBMITTED"
	StateAlreadySubmitted State = "ALREADY_SUBMITTED"
	StateExpired          State = "EXPIRED"
	StateCancelled        State = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateSubmitted, StateAlreadySubmitted, StateExpired, StateCancelled:
		return true
	}
	return false
}

// EventType classifies participation events.
type EventType string

const (
	EventTick      EventType = "tick"
	EventSubmitted EventType = "submitted"
	EventExpired   EventType = "expired"
)

// Event is emitted while a participation is in progress.
type Event struct {
	Type      EventType
	Remaining int
	Receipt   *Receipt
	Err       error
}

// Engine bundles the collaborators a Participation needs.
type Engine struct {
	Store  Store
	Join   *JoinResolver
	Timer  *TimerController
	Guard  *SubmissionGuard
	Logger zerolog.Logger
}

// NewEngine wires the resolver, timer and guard over one store and clock.
func NewEngine(store Store, clock Clock, log zerolog.Logger, joinOpts []JoinOption, guardOpts []GuardOption) *Engine {
	return &Engine{
		Store:  store,
		Join:   NewJoinResolver(store, log, joinOpts...),
		Timer:  NewTimerController(clock),
		Guard:  NewSubmissionGuard(store, clock, log, guardOpts...),
		Logger: log,
	}
}

// Participation is one student's attempt at one session. It lives only in
// memory: created on join, destroyed on submit or when the student leaves.
type Participation struct {
	engine    *Engine
	studentID string
	log       zerolog.Logger

	mu        sync.Mutex
	state     State
	joined    *Joined
	answers   map[string]string
	remaining int
	countdown *Countdown
	receipt   *Receipt
	err       error
	finished  chan struct{}

	// submitMu serializes manual and expiry submissions so exactly one wins.
	submitMu sync.Mutex
}

// NewParticipation starts a participation in NotJoined.
func (e *Engine) NewParticipation(studentID string) *Participation {
	return &Participation{
		engine:    e,
		studentID: studentID,
		log:       e.Logger.With().Str("component", "participation").Str("student_id", studentID).Logger(),
		state:     StateNotJoined,
		answers:   make(map[string]string),
		finished:  make(chan struct{}),
	}
}

// State returns the current state.
func (p *Participation) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Joined returns the join snapshot, or nil before a successful join.
func (p *Participation) Joined() *Joined {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.joined
}

// Remaining returns the last remaining-seconds value seen.
func (p *Participation) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}

// Receipt returns the accepted submission, if any.
func (p *Participation) Receipt() *Receipt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.receipt
}

// Err returns the error that moved the participation to Expired, if any.
func (p *Participation) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Answers returns a copy of the in-progress answers.
func (p *Participation) Answers() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.answers))
	for k, v := range p.answers {
		out[k] = v
	}
	return out
}

// Join resolves code. If the student already submitted, the participation
// ends in AlreadySubmitted and ErrAlreadySubmitted is returned.
func (p *Participation) Join(ctx context.Context, code, section string) (*Joined, error) {
	p.mu.Lock()
	if p.state != StateNotJoined {
		state := p.state
		p.mu.Unlock()
		return nil, notEligible("cannot join from state %s", state)
	}
	p.mu.Unlock()

	joined, err := p.engine.Join.Resolve(ctx, code, section)
	if err != nil {
		return nil, err
	}

	submitted, err := p.engine.Store.HasSubmitted(ctx, joined.Session.ID, p.studentID)
	if err != nil {
		return nil, persistence("check existing submission", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateNotJoined {
		return nil, notEligible("cannot join from state %s", p.state)
	}
	p.joined = joined
	if submitted {
		p.setState(StateAlreadySubmitted)
		return joined, alreadySubmitted(p.studentID)
	}
	p.state = StateJoined
	return joined, nil
}

// Restore seeds answers, e.g. from autosaved drafts, before or during the attempt.
func (p *Participation) Restore(answers map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range answers {
		p.answers[k] = v
	}
}

// Answer records or replaces the answer to one question.
func (p *Participation) Answer(questionID, answer string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateInProgress && p.state != StateJoined {
		return notEligible("cannot answer in state %s", p.state)
	}
	id, err := uuid.Parse(questionID)
	if err != nil || !p.hasQuestion(id) {
		return invalid("unknown question", map[string]string{"q_id": "unknown"})
	}
	p.answers[questionID] = answer
	return nil
}

func (p *Participation) hasQuestion(id uuid.UUID) bool {
	for i := range p.joined.Questions {
		if p.joined.Questions[i].ID == id {
			return true
		}
	}
	return false
}

// Begin moves Joined -> InProgress and starts the countdown. The returned
// channel carries ticks and the terminal event and is closed when the
// participation stops running. Sessions without an end time run untimed and
// only emit the terminal event.
func (p *Participation) Begin(ctx context.Context) (<-chan Event, error) {
	p.mu.Lock()
	if p.state != StateJoined {
		state := p.state
		p.mu.Unlock()
		return nil, notEligible("cannot begin from state %s", state)
	}
	p.state = StateInProgress
	sess := p.joined.Session
	p.mu.Unlock()

	events := make(chan Event, 8)
	if sess.EndTime == nil {
		go p.waitUntimed(ctx, events)
		return events, nil
	}

	cd := p.engine.Timer.Start(ctx, *sess.EndTime)
	p.mu.Lock()
	p.countdown = cd
	if p.state.Terminal() {
		cd.Stop()
	}
	p.mu.Unlock()

	go p.run(ctx, cd, events)
	return events, nil
}

func (p *Participation) waitUntimed(ctx context.Context, events chan Event) {
	defer close(events)
	select {
	case <-ctx.Done():
		p.Cancel()
	case <-p.finished:
	}
}

func (p *Participation) run(ctx context.Context, cd *Countdown, events chan Event) {
	defer close(events)

	ticks := cd.Ticks()
	for ticks != nil {
		select {
		case r, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			p.mu.Lock()
			p.remaining = r
			p.mu.Unlock()
			send(events, Event{Type: EventTick, Remaining: r})
		case <-ctx.Done():
			p.Cancel()
			return
		}
	}

	select {
	case <-cd.Expired():
	default:
		// Stopped by a manual submit, Cancel, or the context.
		if ctx.Err() != nil {
			p.Cancel()
		}
		return
	}

	receipt, err := p.autoSubmit(context.WithoutCancel(ctx))
	switch {
	case err == nil && receipt != nil:
		send(events, Event{Type: EventSubmitted, Receipt: receipt})
	case errors.Is(err, ErrCancelled):
	case err != nil:
		send(events, Event{Type: EventExpired, Err: err})
	}
}

// Submit is the manual submission path. Validation and persistence failures
// leave the participation in progress so the student can retry.
func (p *Participation) Submit(ctx context.Context) (*Receipt, error) {
	return p.submit(ctx, false)
}

func (p *Participation) autoSubmit(ctx context.Context) (*Receipt, error) {
	return p.submit(ctx, true)
}

func (p *Participation) submit(ctx context.Context, auto bool) (*Receipt, error) {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	p.mu.Lock()
	switch {
	case p.state == StateSubmitted && auto:
		// Expiry after a manual submit is a no-op.
		p.mu.Unlock()
		return nil, nil
	case p.state == StateCancelled:
		p.mu.Unlock()
		return nil, cancelled()
	case p.state != StateInProgress && !(p.state == StateJoined && !auto):
		state := p.state
		p.mu.Unlock()
		if state == StateSubmitted || state == StateAlreadySubmitted {
			return nil, alreadySubmitted(p.studentID)
		}
		return nil, notEligible("cannot submit from state %s", state)
	}
	req := SubmitRequest{
		SessionID:  p.joined.Session.ID,
		StudentID:  p.studentID,
		Answers:    make(map[string]string, len(p.answers)),
		AutoSubmit: auto,
	}
	for k, v := range p.answers {
		if strings.TrimSpace(v) != "" {
			req.Answers[k] = v
		}
	}
	p.mu.Unlock()

	receipt, err := p.engine.Guard.Submit(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateCancelled {
		// The student left while the write was in flight; the write stands.
		if err == nil {
			p.receipt = receipt
		}
		return receipt, err
	}

	switch {
	case err == nil:
		p.receipt = receipt
		p.setState(StateSubmitted)
	case errors.Is(err, ErrAlreadySubmitted):
		p.setState(StateAlreadySubmitted)
	case auto:
		p.err = err
		p.setState(StateExpired)
		p.log.Error().Err(err).Msg("Auto-submit failed")
	}
	return receipt, err
}

// Cancel stops the participation. Pending ticks and the expiry auto-submit
// are suppressed. Terminal states are left untouched.
func (p *Participation) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return
	}
	p.setState(StateCancelled)
}

// setState must be called with mu held. Entering a terminal state stops the
// countdown and releases anything waiting on the participation.
func (p *Participation) setState(s State) {
	p.state = s
	if !s.Terminal() {
		return
	}
	if p.countdown != nil {
		p.countdown.Stop()
	}
	select {
	case <-p.finished:
	default:
		close(p.finished)
	}
}

// send never blocks. Ticks are dropped when the reader lags; a terminal event
// evicts the oldest buffered tick instead.
func send(events chan Event, ev Event) {
	for {
		select {
		case events <- ev:
			return
		default:
		}
		if ev.Type == EventTick {
			return
		}
		select {
		case <-events:
		default:
		}
	}
}

// Finished is closed once the participation reaches a terminal state.
func (p *Participation) Finished() <-chan struct{} {
	return p.finished
}
