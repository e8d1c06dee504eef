package fsm

import "bgpd/message"

// EventKind is the input alphabet of the peer state machine (RFC 4271
// §8.1, enumerated in full in §4.3).
type EventKind int

const (
	ManualStart EventKind = iota + 1
	AutomaticStart
	ManualStartPassive
	AutomaticStartPassive
	ManualStop
	AutomaticStop
	ConnectRetryTimerExpires
	HoldTimerExpires
	KeepaliveTimerExpires
	DelayOpenTimerExpires
	IdleHoldTimerExpires
	TcpConnectionValid
	TcpCRInvalid
	TcpCRAcked
	TcpConnectionConfirmed
	TcpConnectionFails
	OpenMsg
	BgpOpenWithDelayOpen
	BgpHeaderErr
	BgpOpenMsgErr
	OpenCollisionDump
	NotifMsgVerErr
	NotifMsg
	KeepaliveMsg
	UpdateMsg
	RouteRefreshMsg
	UpdateMsgErr
)

var eventName = map[EventKind]string{
	ManualStart:              "ManualStart",
	AutomaticStart:           "AutomaticStart",
	ManualStartPassive:       "ManualStartPassive",
	AutomaticStartPassive:    "AutomaticStartPassive",
	ManualStop:               "ManualStop",
	AutomaticStop:            "AutomaticStop",
	ConnectRetryTimerExpires: "ConnectRetryTimerExpires",
	HoldTimerExpires:         "HoldTimerExpires",
	KeepaliveTimerExpires:    "KeepaliveTimerExpires",
	DelayOpenTimerExpires:    "DelayOpenTimerExpires",
	IdleHoldTimerExpires:     "IdleHoldTimerExpires",
	TcpConnectionValid:       "TcpConnectionValid",
	TcpCRInvalid:             "TcpCRInvalid",
	TcpCRAcked:               "TcpCRAcked",
	TcpConnectionConfirmed:   "TcpConnectionConfirmed",
	TcpConnectionFails:       "TcpConnectionFails",
	OpenMsg:                  "OpenMsg",
	BgpOpenWithDelayOpen:     "BgpOpenWithDelayOpen",
	BgpHeaderErr:             "BgpHeaderErr",
	BgpOpenMsgErr:            "BgpOpenMsgErr",
	OpenCollisionDump:        "OpenCollisionDump",
	NotifMsgVerErr:           "NotifMsgVerErr",
	NotifMsg:                 "NotifMsg",
	KeepaliveMsg:             "KeepaliveMsg",
	UpdateMsg:                "UpdateMsg",
	RouteRefreshMsg:          "RouteRefreshMsg",
	UpdateMsgErr:             "UpdateMsgErr",
}

func (k EventKind) String() string {
	if name, ok := eventName[k]; ok {
		return name
	}
	return "Unknown"
}

// Event is one input to Machine.Step. Open and Notification are
// populated only for the event kinds that carry a decoded message.
type Event struct {
	Kind         EventKind
	Open         *message.Open
	Notification *message.Notification
	Update       *message.Update
}
