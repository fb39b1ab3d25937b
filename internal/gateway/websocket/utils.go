package websocket

import (
	"encoding/json"
	"strings"
)

const privateChannelPrefix = "dm:"

func marshalMessage(msgType MessageType, payload interface{}) (*WSMessage, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &WSMessage{
		Type:    msgType,
		Payload: payloadBytes,
	}, nil
}

func privateChannelID(externalID string) string {
	return privateChannelPrefix + externalID
}

func externalIDFromChannel(channelID string) (string, bool) {
	if !strings.HasPrefix(channelID, privateChannelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(channelID, privateChannelPrefix)
	return id, id != ""
}
