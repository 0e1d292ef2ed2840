package ws

import (
	"context"
	"encoding/json"

	"github.com/medivisit/telehealth-api/internal/service/chat"
	"github.com/medivisit/telehealth-api/pkg/logger"
	"github.com/medivisit/telehealth-api/pkg/messaging"
)

// RunRelay delivers messages published by sibling API instances to this
// instance's local rooms. Events originated locally are skipped; the
// hub already broadcast those directly.
func RunRelay(ctx context.Context, broker messaging.Broker, hub *Hub, l *logger.Logger) error {
	log := l.WithComponent("ws-relay")

	events, err := broker.Subscribe(ctx, chat.ChannelPattern)
	if err != nil {
		return err
	}

	go func() {
		for raw := range events {
			var evt chat.Event
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Error(err, "failed to decode relayed event")
				continue
			}
			if evt.Origin == hub.InstanceID() || evt.Message == nil {
				continue
			}
			hub.Broadcast(evt.Message.ConversationID, messageFrame(evt.Message))
		}
	}()

	return nil
}
