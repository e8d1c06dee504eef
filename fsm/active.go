package fsm

// stepActive implements §4.3 "Active": listening only, symmetric to
// Connect except this machine never initiates an outbound connection.
func (m *Machine) stepActive(ev Event) []Effect {
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
		return []Effect{{Kind: EffectDropTCP}}

	case TcpConnectionFails:
		if running, _ := m.delayOpenTimer.IsRunning(); running {
			m.connectRetryTimer.Start(m.cfg.ConnectRetryTime)
			m.delayOpenTimer.Stop()
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
			effects = append(effects, sendNotification(byte(ErrCodeFor(ev.Kind)), 0))
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
