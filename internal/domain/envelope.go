package domain

// Envelope is the frame broadcast to every open connection for one inbound message.
type Envelope struct {
	From    Identity `json:"from"`
	Message string   `json:"message"`
}
