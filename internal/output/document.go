package output

import (
	"encoding/xml"

	"github.com/loykin/portcheck/internal/model"
)

type Status string

const (
	StatusFree  Status = "free"
	StatusInUse Status = "in_use"
	StatusError Status = "error"
)

// PortStatus is the structured document for one record, or for a free port.
// Absent values are omitted rather than printed empty.
type PortStatus struct {
	XMLName       xml.Name `json:"-" yaml:"-" toml:"-" xml:"port_status"`
	Port          uint16   `json:"port" yaml:"port" toml:"port" xml:"port"`
	Status        Status   `json:"status" yaml:"status" toml:"status" xml:"status"`
	Process       string   `json:"process,omitempty" yaml:"process,omitempty" toml:"process,omitempty" xml:"process,omitempty"`
	PID           int32    `json:"pid,omitempty" yaml:"pid,omitempty" toml:"pid,omitempty" xml:"pid,omitempty"`
	User          string   `json:"user,omitempty" yaml:"user,omitempty" toml:"user,omitempty" xml:"user,omitempty"`
	Command       string   `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty" xml:"command,omitempty"`
	TTY           string   `json:"tty,omitempty" yaml:"tty,omitempty" toml:"tty,omitempty" xml:"tty,omitempty"`
	StartTime     int64    `json:"start_time,omitempty" yaml:"start_time,omitempty" toml:"start_time,omitempty" xml:"start_time,omitempty"`
	UptimeSeconds int64    `json:"uptime_seconds,omitempty" yaml:"uptime_seconds,omitempty" toml:"uptime_seconds,omitempty" xml:"uptime_seconds,omitempty"`
}

// ErrorStatus is the structured document for a failed lookup.
type ErrorStatus struct {
	XMLName xml.Name `json:"-" yaml:"-" toml:"-" xml:"port_status"`
	Port    uint16   `json:"port" yaml:"port" toml:"port" xml:"port"`
	Status  Status   `json:"status" yaml:"status" toml:"status" xml:"status"`
	Message string   `json:"message" yaml:"message" toml:"message" xml:"message"`
}

// FromRecord converts a record; extra controls tty, start time and uptime.
func FromRecord(r model.ProcessRecord, extra bool) PortStatus {
	s := PortStatus{
		Port:    r.Port,
		Status:  StatusInUse,
		Process: r.ProcessName,
		PID:     r.PID,
		User:    r.User,
		Command: r.Command,
	}
	if extra {
		s.TTY = r.TTY
		if r.HasStartTime() {
			s.StartTime = r.StartTime.Unix()
			s.UptimeSeconds = int64(r.Uptime.Seconds())
		}
	}
	return s
}

// Document shapes the result for port: a free PortStatus for no records,
// a single PortStatus for one, a []PortStatus otherwise.
func Document(port uint16, recs []model.ProcessRecord, extra bool) any {
	switch len(recs) {
	case 0:
		return PortStatus{Port: port, Status: StatusFree}
	case 1:
		return FromRecord(recs[0], extra)
	}
	list := make([]PortStatus, len(recs))
	for i, r := range recs {
		list[i] = FromRecord(r, extra)
	}
	return list
}

func errorDocument(port uint16, err error) ErrorStatus {
	return ErrorStatus{Port: port, Status: StatusError, Message: err.Error()}
}
