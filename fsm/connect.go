package fsm

// stepConnect implements §4.3 "Connect": outbound connect in progress,
// inbound also accepted.
func (m *Machine) stepConnect(ev Event) []Effect {
	switch ev.Kind {
	case TcpCRAcked, TcpConnectionConfirmed:
		if m.cfg.DelayOpen {
			m.connectRetryTimer.Stop()
			m.delayOpenTimer.Start(m.cfg.DelayOpenTime)
			return nil
		}
		m.connectRetryTimer.Stop()
		m.holdTimer.Start(largeHoldTime)
		m.state = OpenSent
		return []Effect{{Kind: EffectSendOpen, Open: m.buildOpen()}}

	case DelayOpenTimerExpires:
		m.holdTimer.Start(largeHoldTime)
		m.state = OpenSent
		return []Effect{{Kind: EffectSendOpen, Open: m.buildOpen()}}

	case ConnectRetryTimerExpires:
		m.connectRetryTimer.Start(m.cfg.ConnectRetryTime)
		m.delayOpenTimer.Stop()
		return []Effect{{Kind: EffectDropTCP}, {Kind: EffectInitiateTCP}}

	case TcpConnectionFails:
		if running, _ := m.delayOpenTimer.IsRunning(); running {
			m.connectRetryTimer.Start(m.cfg.ConnectRetryTime)
			m.delayOpenTimer.Stop()
			m.state = Active
			return nil
		}
		m.connectRetryTimer.Stop()
		m.state = Idle
		return []Effect{{Kind: EffectDropTCP}}

	case BgpOpenWithDelayOpen:
		notif := m.negotiateOpen(ev.Open)
		if notif != nil {
			m.goIdle(true)
			return []Effect{{Kind: EffectDropTCP}, {Kind: EffectSendNotification, Notification: notif}}
		}
		m.connectRetryTimer.Stop()
		m.delayOpenTimer.Stop()
		effects := []Effect{
			{Kind: EffectSendOpen, Open: m.buildOpen()},
			{Kind: EffectSendKeepalive},
		}
		if m.negotiatedHoldTime != 0 {
			m.keepaliveTimer.Start(m.negotiatedKeepaliveTime)
			m.holdTimer.Start(m.negotiatedHoldTime)
		} else {
			m.keepaliveTimer.Start(m.negotiatedKeepaliveTime)
			m.holdTimer.Stop()
		}
		m.state = OpenConfirm
		return effects

	case BgpHeaderErr, BgpOpenMsgErr:
		var effects []Effect
		if m.cfg.SendNotificationWithoutOpen {
			code, subcode := byte(ErrCodeFor(ev.Kind)), byte(0)
			effects = append(effects, sendNotification(code, subcode))
		}
		effects = append(effects, Effect{Kind: EffectDropTCP})
		m.goIdle(true)
		return effects

	case NotifMsgVerErr:
		if running, _ := m.delayOpenTimer.IsRunning(); running {
			m.delayOpenTimer.Stop()
			m.connectRetryTimer.Stop()
			m.state = Idle
			return []Effect{{Kind: EffectDropTCP}}
		}
		m.goIdle(true)
		return []Effect{{Kind: EffectDropTCP}}

	case ManualStop:
		m.connectRetryCounter = 0
		m.connectRetryTimer.Stop()
		m.state = Idle
		return []Effect{{Kind: EffectDropTCP}}

	case AutomaticStop, HoldTimerExpires, KeepaliveTimerExpires, IdleHoldTimerExpires, OpenCollisionDump:
		m.goIdle(true)
		return []Effect{{Kind: EffectDropTCP}}

	default:
		return nil
	}
}

// ErrCodeFor maps a header/open-message error event to the NOTIFICATION
// error code sent when send_notification_without_open is set.
func ErrCodeFor(k EventKind) int {
	switch k {
	case BgpHeaderErr:
		return 1 // Message Header Error
	case BgpOpenMsgErr:
		return 2 // OPEN Message Error
	default:
		return 5 // Finite State Machine Error
	}
}
