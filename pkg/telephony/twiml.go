package telephony

import (
	"net/url"

	"github.com/twilio/twilio-go/twiml"
)

// StreamURL returns the WebSocket URL the carrier should open for a session.
func StreamURL(publicHost, path, sessionID string) string {
	u := url.URL{Scheme: "wss", Host: publicHost, Path: path}
	q := u.Query()
	q.Set(SessionParam, sessionID)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnectTwiML renders the markup instructing the carrier to stream the call
// to streamURL. The session id travels both in the URL and as a custom
// parameter, because some carriers strip query strings from stream URLs.
func ConnectTwiML(streamURL, sessionID string) ([]byte, error) {
	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{
			&twiml.VoiceStream{
				Url: streamURL,
				InnerElements: []twiml.Element{
					&twiml.VoiceParameter{Name: SessionParam, Value: sessionID},
				},
			},
		},
	}

	body, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}
