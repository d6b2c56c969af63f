package statefile

import "github.com/kodflow/agld/internal/supervisor"

// Publisher implements supervisor.Publisher: after every state change it
// recomputes the binary snapshot and, if HTMLID is non-empty, the HTML
// dump (spec §4.5, "state publisher").
type Publisher struct {
	Store  *Store
	HTMLID string
	Warn   func(format string, args ...any)
}

// Publish is called by the Supervisor after any Service's state changes.
func (p *Publisher) Publish(services []*supervisor.Service) {
	records := make([]Record, len(services))
	for i, s := range services {
		records[i] = Record{Name: s.Name(), State: s.StateString(), Info: s.StateMessage()}
	}

	if err := p.Store.Write(records); err != nil {
		p.warnf("writing state file: %v", err)
		return
	}

	if p.HTMLID != "" {
		if err := WriteHTML(p.Store.Path(), p.HTMLID, records); err != nil {
			p.warnf("writing html dump: %v", err)
		}
	}
}

func (p *Publisher) warnf(format string, args ...any) {
	if p.Warn != nil {
		p.Warn(format, args...)
	}
}
