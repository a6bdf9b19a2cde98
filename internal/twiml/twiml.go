// Package twiml builds Twilio voice-markup responses. TwiML is plain XML;
// the webhook handler replies with one <Response> document per request.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// VoiceAlice is Twilio's basic built-in <Say> voice, used when no premium
// voice is configured.
const VoiceAlice = "alice"

// Say speaks text to the caller.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Gather collects caller input; nested verbs play while Twilio listens.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Verbs         []any
}

// Pause waits silently for the given number of seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

// Redirect transfers control of the call to another webhook URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response is one TwiML document, assembled verb by verb.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// NewResponse starts an empty TwiML response.
func NewResponse() *Response {
	return &Response{}
}

// Say appends a spoken line.
func (r *Response) Say(text, voice, language string) *Response {
	r.Verbs = append(r.Verbs, Say{Voice: voice, Language: language, Text: text})
	return r
}

// Gather appends a speech-gathering verb that posts the result back to action.
func (r *Response) Gather(g Gather) *Response {
	if g.Input == "" {
		g.Input = "speech"
	}
	if g.Method == "" {
		g.Method = "POST"
	}
	r.Verbs = append(r.Verbs, g)
	return r
}

// Pause appends a silent pause.
func (r *Response) Pause(seconds int) *Response {
	r.Verbs = append(r.Verbs, Pause{Length: seconds})
	return r
}

// Redirect appends a redirect to another webhook.
func (r *Response) Redirect(url string) *Response {
	r.Verbs = append(r.Verbs, Redirect{Method: "POST", URL: url})
	return r
}

// Hangup appends a hangup verb.
func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// Render serializes the document with the XML declaration Twilio expects.
func (r *Response) Render() (string, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal twiml: %w", err)
	}
	return xml.Header + string(body), nil
}
