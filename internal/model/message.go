// Package model holds the types shared between the bot's components.
package model

// InboundMessage is a text message received from the messaging platform.
type InboundMessage struct {
	UserID     string
	Text       string
	ReplyToken string
	EventID    string
	Redelivery bool
}

// Push is an unsolicited message addressed to a user.
type Push struct {
	To   string
	Text string
}

// Outcome is what the bot sends back for one inbound message.
type Outcome struct {
	Reply string
	Push  *Push
}
