package domain

import (
	"time"
)

// Service is the closed set of control-plane operations.
type Service int

const (
	ServiceUnknown Service = iota
	ServiceLogin
	ServiceLogout
	ServiceUsers
	ServiceChannels
	ServiceChannel
	ServicePublish
	ServiceMessage
	ServiceFetchOffline
)

var serviceNames = map[Service]string{
	ServiceLogin:        "login",
	ServiceLogout:       "logout",
	ServiceUsers:        "users",
	ServiceChannels:     "channels",
	ServiceChannel:      "channel",
	ServicePublish:      "publish",
	ServiceMessage:      "message",
	ServiceFetchOffline: "fetch_offline",
}

// ParseService maps a wire name to its Service, ServiceUnknown otherwise.
func ParseService(name string) Service {
	for service, n := range serviceNames {
		if n == name {
			return service
		}
	}
	return ServiceUnknown
}

func (s Service) String() string {
	if name, ok := serviceNames[s]; ok {
		return name
	}
	return "unknown"
}

// Request is one decoded control-plane request.
// Name keeps the raw service string so unknown services can be echoed back.
type Request struct {
	Service Service
	Name    string
	User    string
	Channel string
	Src     string
	Dst     string
	Message string
}

type Status string

const (
	StatusOK        Status = "OK"
	StatusError     Status = "ERROR"
	StatusDelivered Status = "DELIVERED"
	StatusStored    Status = "STORED"
)

// Reply is the single answer produced for a Request.
// Only the fields relevant to the service are filled in.
type Reply struct {
	Service   string
	Status    Status
	Message   string
	Timestamp time.Time
	Users     []string
	Online    []string
	Channels  []string
	Offline   []OfflineEntry
}

func (r Reply) Failed() bool {
	return r.Status == StatusError
}
