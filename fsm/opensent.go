package fsm

import "bgpd/message"

// stepOpenSent implements §4.3 "OpenSent": our OPEN has been sent,
// awaiting the peer's.
func (m *Machine) stepOpenSent(ev Event) []Effect {
	switch ev.Kind {
	case OpenMsg:
		notif := m.negotiateOpen(ev.Open)
		if notif != nil {
			m.state = Idle
			m.connectRetryTimer.Stop()
			m.holdTimer.Stop()
			return []Effect{{Kind: EffectSendNotification, Notification: notif}, {Kind: EffectDropTCP}}
		}
		m.keepaliveTimer.Start(m.negotiatedKeepaliveTime)
		if m.negotiatedHoldTime > 0 {
			m.holdTimer.Start(m.negotiatedHoldTime)
		} else {
			m.holdTimer.Stop()
		}
		m.state = OpenConfirm
		return []Effect{{Kind: EffectSendKeepalive}}

	case TcpConnectionFails:
		m.connectRetryTimer.Start(m.cfg.ConnectRetryTime)
		m.state = Active
		return []Effect{{Kind: EffectDropTCP}}

	case HoldTimerExpires:
		m.goIdle(true)
		return []Effect{
			sendNotification(message.ErrCodeHoldTimerExpired, 0),
			{Kind: EffectDropTCP},
		}

	case NotifMsgVerErr:
		m.connectRetryTimer.Stop()
		m.holdTimer.Stop()
		m.state = Idle
		return []Effect{{Kind: EffectDropTCP}}

	case ManualStop:
		m.connectRetryCounter = 0
		m.connectRetryTimer.Stop()
		m.state = Idle
		return []Effect{{Kind: EffectDropTCP}}

	default:
		m.goIdle(true)
		return []Effect{
			sendNotification(message.ErrCodeFiniteStateMachine, 0),
			{Kind: EffectDropTCP},
		}
	}
}
