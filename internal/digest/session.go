package digest

import (
	"encoding/json"
	"time"
)

// sentrySession is the release-health session payload shape.
type sentrySession struct {
	SID       string       `json:"sid"`
	Init      bool         `json:"init"`
	Started   string       `json:"started"`
	Timestamp string       `json:"timestamp"`
	Errors    int32        `json:"errors"`
	Status    string       `json:"status"`
	Attrs     sessionAttrs `json:"attrs"`
}

type sessionAttrs struct {
	Release     string `json:"release"`
	Environment string `json:"environment"`
}

func parseSession(data []byte) (sentrySession, bool) {
	var s sentrySession
	if err := json.Unmarshal(data, &s); err != nil || s.SID == "" {
		return sentrySession{}, false
	}
	if s.Status == "" {
		s.Status = "ok"
	}
	return s, true
}

func (s sentrySession) startedAt() time.Time {
	if t, err := time.Parse(time.RFC3339, s.Started); err == nil {
		return t
	}
	return time.Now().UTC()
}

func (s sentrySession) timestampAt() time.Time {
	if t, err := time.Parse(time.RFC3339, s.Timestamp); err == nil {
		return t
	}
	return s.startedAt()
}
