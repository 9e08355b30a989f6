// Package channel abstracts the external messaging capability: delivering
// one message to one contact and asking the external side to refresh the
// roster. The real transmitting bridge lives outside this service; cmd/worker
// ships a development stand-in.
package channel

// Message is one outbound send to a single contact.
type Message struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Channel is the external messaging capability. SendOne reports the outcome
// of a single delivery; an error is that recipient's failure only, never a
// batch failure. RequestRosterRefresh asks the external side to republish
// the roster; an error means the request was not accepted.
type Channel interface {
	SendOne(msg Message) error
	RequestRosterRefresh() error
}
