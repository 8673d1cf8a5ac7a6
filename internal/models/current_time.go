package models

import "time"

// CurrentTime is the server clock as served by the current-time endpoint.
type CurrentTime struct {
	ReadableTime string `json:"readableTime"`
	Time         int64  `json:"time"`
}

func NewCurrentTime(t time.Time) CurrentTime {
	return CurrentTime{ReadableTime: t.Format(time.RFC3339), Time: t.UnixMilli()}
}
