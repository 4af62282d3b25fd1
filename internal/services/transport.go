package services

import "github.com/winniek75/flashinput-sub005/internal/models"

// Transport is what the session registry needs from the connection layer.
// Hub is the production implementation.
type Transport interface {
	// Send addresses one message to a single connection.
	Send(connID string, msg *models.WSMessage)
	// Publish delivers msg to every subscriber of topic except the
	// connection named by except (empty means nobody is excluded).
	Publish(topic string, msg *models.WSMessage, except string)
	Subscribe(connID, topic string)
	Unsubscribe(connID, topic string)
	// DropTopic removes every subscription to topic.
	DropTopic(topic string)
}
