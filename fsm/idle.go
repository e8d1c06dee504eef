package fsm

// stepIdle implements §4.3 "Idle". All timers are stopped on entry to
// Idle (via goIdle); from here only the start events and a damp-backoff
// expiry are meaningful.
func (m *Machine) stepIdle(ev Event) []Effect {
	switch ev.Kind {
	case ManualStart, AutomaticStart:
		m.idleHoldTimer.Stop()
		m.connectRetryCounter = 0
		m.connectRetryTimer.Start(m.cfg.ConnectRetryTime)
		m.state = Connect
		return []Effect{{Kind: EffectInitiateTCP}}
	case ManualStartPassive, AutomaticStartPassive:
		m.idleHoldTimer.Stop()
		m.connectRetryCounter = 0
		m.connectRetryTimer.Start(m.cfg.ConnectRetryTime)
		m.state = Active
		return nil
	case IdleHoldTimerExpires:
		// damp_peer_oscillations backoff elapsed: resume as if freshly
		// automatically started.
		m.connectRetryTimer.Start(m.cfg.ConnectRetryTime)
		m.state = Connect
		return []Effect{{Kind: EffectInitiateTCP}}
	default:
		// All other events are ignored in Idle.
		return nil
	}
}
