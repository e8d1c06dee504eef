package fsm

import "bgpd/message"

// stepOpenConfirm implements §4.3 "OpenConfirm": our OPEN has been
// acknowledged, awaiting the peer's KEEPALIVE.
func (m *Machine) stepOpenConfirm(ev Event) []Effect {
	switch ev.Kind {
	case KeepaliveMsg:
		m.holdTimer.Start(m.negotiatedHoldTime)
		m.state = Established
		return nil

	case HoldTimerExpires:
		m.goIdle(true)
		return []Effect{
			sendNotification(message.ErrCodeHoldTimerExpired, 0),
			{Kind: EffectDropTCP},
		}

	case KeepaliveTimerExpires:
		m.keepaliveTimer.Start(m.negotiatedKeepaliveTime)
		return []Effect{{Kind: EffectSendKeepalive}}

	case NotifMsg, TcpConnectionFails, NotifMsgVerErr, OpenCollisionDump:
		m.goIdle(true)
		return []Effect{{Kind: EffectDropTCP}}

	case ManualStop:
		m.connectRetryCounter = 0
		m.connectRetryTimer.Stop()
		m.holdTimer.Stop()
		m.keepaliveTimer.Stop()
		m.state = Idle
		return []Effect{{Kind: EffectSendNotification, Notification: &message.Notification{Code: message.ErrCodeCease}}, {Kind: EffectDropTCP}}

	default:
		m.goIdle(true)
		return []Effect{
			sendNotification(message.ErrCodeFiniteStateMachine, 0),
			{Kind: EffectDropTCP},
		}
	}
}
