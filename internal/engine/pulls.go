package engine

import "context"

// Every pull issues a guard token and applies its response only while the
// token is still current. Failures are logged and leave state unchanged.

func (e *Engine) pullChats() {
	t := e.guard.issue(pullChats, "")
	e.goHost(func(ctx context.Context) func() {
		convs, err := e.host.Chats(ctx)
		return func() {
			if !e.guard.resolve(t) {
				return
			}
			if err != nil {
				e.logBackground("chats", "", err)
				return
			}
			e.registry.replace(convs)
			e.publish()
		}
	})
}

func (e *Engine) pullMessages(id string) {
	t := e.guard.issue(pullMessages, id)
	limit := e.cfg.MessageLimit
	e.goHost(func(ctx context.Context) func() {
		msgs, err := e.host.Messages(ctx, id, limit)
		return func() {
			if !e.guard.resolve(t) || id != e.selected {
				return
			}
			if err != nil {
				e.logBackground("messages", id, err)
				e.publish()
				return
			}
			for _, arrived := range e.timeline.replace(msgs) {
				e.highlight(arrived)
			}
			e.publish()
		}
	})
}

func (e *Engine) pullStatus() {
	t := e.guard.issue(pullStatus, "")
	e.goHost(func(ctx context.Context) func() {
		status, err := e.host.ConnectionStatus(ctx)
		return func() {
			if !e.guard.resolve(t) {
				return
			}
			if err != nil {
				e.logBackground("connection status", "", err)
				return
			}
			e.applyStatus(status)
			e.publish()
		}
	})
}

func (e *Engine) pullInterventions() {
	t := e.guard.issue(pullInterventions, "")
	e.goHost(func(ctx context.Context) func() {
		states, err := e.host.Interventions(ctx)
		return func() {
			if !e.guard.resolve(t) {
				return
			}
			if err != nil {
				e.logBackground("interventions", "", err)
				return
			}
			e.modes.ApplyAllInterventions(states, e.loop.Now())
			e.publish()
		}
	})
}

func (e *Engine) pullIntervention(id string) {
	t := e.guard.issue(pullIntervention, id)
	e.goHost(func(ctx context.Context) func() {
		state, err := e.host.InterventionDetails(ctx, id)
		return func() {
			if !e.guard.resolve(t) || e.modes.InterventionToggleInFlight(id) {
				return
			}
			if err != nil {
				e.logBackground("intervention details", id, err)
				return
			}
			state.ConversationID = id
			state.AsOf = e.loop.Now()
			e.modes.ApplyIntervention(state)
			e.publish()
		}
	})
}

func (e *Engine) pullAIStatus(id string) {
	t := e.guard.issue(pullAIStatus, id)
	e.goHost(func(ctx context.Context) func() {
		status, err := e.host.AIModeStatus(ctx, id)
		return func() {
			if !e.guard.resolve(t) || e.modes.AIToggleInFlight(id) {
				return
			}
			if err != nil {
				e.logBackground("ai mode status", id, err)
				return
			}
			status.ConversationID = id
			e.modes.ApplyAIStatus(status)
			e.publish()
		}
	})
}

func (e *Engine) pullFollowUps() {
	t := e.guard.issue(pullFollowUps, "")
	e.goHost(func(ctx context.Context) func() {
		items, err := e.host.ActiveFollowUps(ctx)
		return func() {
			if !e.guard.resolve(t) {
				return
			}
			if err != nil {
				e.logBackground("follow-ups", "", err)
				return
			}
			e.board.ApplyAll(items, e.loop.Now())
			e.publish()
		}
	})
}

func (e *Engine) pullCheckInfo(id string) {
	t := e.guard.issue(pullCheckInfo, id)
	e.goHost(func(ctx context.Context) func() {
		check, err := e.host.FollowUpCheckInfo(ctx, id)
		return func() {
			if !e.guard.resolve(t) {
				return
			}
			if err != nil {
				e.logBackground("check info", id, err)
				return
			}
			e.board.ApplyCheck(id, check, e.loop.Now())
			e.publish()
		}
	})
}
