package join

import (
	"context"
	"time"

	"classroom/internal/poller"
	"classroom/pkg/types"
)

// Participation is a joined session as seen by one participant.
// Every call resolves its bearer token from Mode at call time.
type Participation struct {
	flow *Flow

	Passcode  string
	Mode      string
	SessionID int64
	Name      string
}

func (p *Participation) token(ctx context.Context) (string, error) {
	return p.flow.TokenFor(ctx, p.Passcode, p.Mode)
}

// SendHeartbeat tells the server this participant is still present
func (p *Participation) SendHeartbeat(ctx context.Context) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}
	return p.flow.api.Heartbeat(ctx, p.Passcode, token)
}

// Participants fetches the roster
func (p *Participation) Participants(ctx context.Context) ([]types.Participant, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, err
	}
	return p.flow.api.Participants(ctx, p.Passcode, token)
}

// ActiveModules fetches the modules attached to the session in queue order
func (p *Participation) ActiveModules(ctx context.Context) ([]types.ModuleState, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, err
	}
	return p.flow.api.ActiveModules(ctx, p.Passcode, token)
}

// TimerState fetches the state of a timer module
func (p *Participation) TimerState(ctx context.Context, moduleID int64) (*types.TimerState, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, err
	}
	return p.flow.api.TimerState(ctx, p.SessionID, moduleID, token)
}

// PostMessage validates and posts a Q&A message
func (p *Participation) PostMessage(ctx context.Context, content string) (*types.Message, error) {
	if err := types.ValidateMessage(content); err != nil {
		return nil, err
	}
	token, err := p.token(ctx)
	if err != nil {
		return nil, err
	}
	return p.flow.api.PostMessage(ctx, p.Passcode, token, types.Message{Content: content})
}

// ActiveTimer returns the id of the active timer module, if any
func (p *Participation) ActiveTimer(ctx context.Context) (int64, error) {
	modules, err := p.ActiveModules(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range modules {
		if m.Kind == types.ModuleTimer && m.IsActive {
			return m.ID, nil
		}
	}
	return 0, ErrNoTimerModule
}

// WatchRoster polls the roster until ctx is done
func (p *Participation) WatchRoster(ctx context.Context, interval, jitter time.Duration, onUpdate func([]types.Participant)) error {
	return poller.New("roster", interval, p.Participants,
		poller.WithJitter[[]types.Participant](jitter),
		poller.WithOnUpdate(onUpdate),
		poller.WithLogger[[]types.Participant](p.flow.logger),
	).Run(ctx)
}

// WatchModules polls the module queue until ctx is done
func (p *Participation) WatchModules(ctx context.Context, interval, jitter time.Duration, onUpdate func([]types.ModuleState)) error {
	return poller.New("modules", interval, p.ActiveModules,
		poller.WithJitter[[]types.ModuleState](jitter),
		poller.WithOnUpdate(onUpdate),
		poller.WithLogger[[]types.ModuleState](p.flow.logger),
	).Run(ctx)
}

// WatchTimer polls one timer module until ctx is done
func (p *Participation) WatchTimer(ctx context.Context, moduleID int64, interval, jitter time.Duration, onUpdate func(*types.TimerState)) error {
	fetch := func(ctx context.Context) (*types.TimerState, error) {
		return p.TimerState(ctx, moduleID)
	}
	return poller.New("timer", interval, fetch,
		poller.WithJitter[*types.TimerState](jitter),
		poller.WithOnUpdate(onUpdate),
		poller.WithLogger[*types.TimerState](p.flow.logger),
	).Run(ctx)
}

// KeepAlive sends a heartbeat immediately and then every interval until ctx
// is done. It stops early when the participant must join again.
func (p *Participation) KeepAlive(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.SendHeartbeat(ctx); err != nil {
			if IsRejoinRequired(err) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.flow.logger.Warn().Err(err).Str("passcode", p.Passcode).Msg("heartbeat failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
