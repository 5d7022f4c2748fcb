package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// recordSeparator terminates every JSON hub protocol frame
const recordSeparator = 0x1e

type messageType int

const (
	typeInvocation       messageType = 1
	typeStreamItem       messageType = 2
	typeCompletion       messageType = 3
	typeStreamInvocation messageType = 4
	typeCancelInvocation messageType = 5
	typePing             messageType = 6
	typeClose            messageType = 7
)

type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// message is the union of the frame shapes the client reads
type message struct {
	Type           messageType       `json:"type"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

type negotiateResponse struct {
	ConnectionID        string `json:"connectionId"`
	ConnectionToken     string `json:"connectionToken"`
	NegotiateVersion    int    `json:"negotiateVersion"`
	URL                 string `json:"url"`
	AccessToken         string `json:"accessToken"`
	Error               string `json:"error"`
	AvailableTransports []struct {
		Transport       string   `json:"transport"`
		TransferFormats []string `json:"transferFormats"`
	} `json:"availableTransports"`
}

func (n negotiateResponse) supportsWebSockets() bool {
	for _, t := range n.AvailableTransports {
		if t.Transport != "WebSockets" {
			continue
		}
		for _, f := range t.TransferFormats {
			if f == "Text" {
				return true
			}
		}
	}
	return false
}

var pingFrame = []byte("{\"type\":6}\x1e")

func encodeFrame(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, recordSeparator), nil
}

// splitFrames cuts a websocket message into hub frames. One message may
// carry several frames; a trailing partial frame is returned as rest.
func splitFrames(data []byte) (frames [][]byte, rest []byte) {
	for {
		i := bytes.IndexByte(data, recordSeparator)
		if i < 0 {
			return frames, data
		}
		if i > 0 {
			frames = append(frames, data[:i])
		}
		data = data[i+1:]
	}
}

func decodeMessage(frame []byte) (message, error) {
	var msg message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return message{}, fmt.Errorf("[hub decodeMessage] %w", err)
	}
	return msg, nil
}
