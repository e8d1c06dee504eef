package fsm

import "bgpd/message"

// stepEstablished implements §4.3 "Established". Route deltas decoded
// from an UpdateMsg are not this machine's concern: the session worker
// hands them to the supervisor's route channel itself, alongside
// calling Step so the hold timer restart and the route propagation
// happen in the same read-loop iteration.
func (m *Machine) stepEstablished(ev Event) []Effect {
	switch ev.Kind {
	case UpdateMsg:
		m.holdTimer.Start(m.negotiatedHoldTime)
		return nil

	case KeepaliveMsg:
		m.holdTimer.Start(m.negotiatedHoldTime)
		return nil

	case KeepaliveTimerExpires:
		m.keepaliveTimer.Start(m.negotiatedKeepaliveTime)
		return []Effect{{Kind: EffectSendKeepalive}}

	case HoldTimerExpires:
		m.goIdle(true)
		return []Effect{
			sendNotification(message.ErrCodeHoldTimerExpired, 0),
			{Kind: EffectDropTCP},
		}

	case RouteRefreshMsg:
		return []Effect{{Kind: EffectResendAdjRIBOut}}

	case NotifMsg, TcpConnectionFails, UpdateMsgErr:
		m.goIdle(true)
		return []Effect{{Kind: EffectDropTCP}}

	case ManualStop:
		m.connectRetryCounter = 0
		m.connectRetryTimer.Stop()
		m.holdTimer.Stop()
		m.keepaliveTimer.Stop()
		m.state = Idle
		return []Effect{
			{Kind: EffectSendNotification, Notification: &message.Notification{Code: message.ErrCodeCease}},
			{Kind: EffectDropTCP},
		}

	case AutomaticStop:
		m.goIdle(true)
		return []Effect{
			{Kind: EffectSendNotification, Notification: &message.Notification{Code: message.ErrCodeCease}},
			{Kind: EffectDropTCP},
		}

	case OpenCollisionDump:
		if !m.cfg.CollisionDetectEstablishedState {
			return nil
		}
		m.goIdle(true)
		return []Effect{
			{Kind: EffectSendNotification, Notification: &message.Notification{Code: message.ErrCodeCease}},
			{Kind: EffectDropTCP},
		}

	default:
		return nil
	}
}
