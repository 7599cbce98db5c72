package callflow

import (
	"bytes"
	"encoding/xml"
)

// Minimal TwiML response builder. It intentionally avoids any provider SDK
// dependency; only the verbs flows actually emit are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
	Loop    int      `xml:"loop,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

// TwiML accumulates verbs and renders the response document.
type TwiML struct {
	resp twimlResponse
}

func (t *TwiML) Say(text string) *TwiML {
	t.resp.Verbs = append(t.resp.Verbs, twimlSay{Text: text})
	return t
}

func (t *TwiML) Play(url string, loop int) *TwiML {
	t.resp.Verbs = append(t.resp.Verbs, twimlPlay{URL: url, Loop: loop})
	return t
}

func (t *TwiML) Hangup() *TwiML {
	t.resp.Verbs = append(t.resp.Verbs, twimlHangup{})
	return t
}

func (t *TwiML) Redirect(url string) *TwiML {
	t.resp.Verbs = append(t.resp.Verbs, twimlRedirect{URL: url})
	return t
}

// Render produces the XML document. An empty response (<Response/>) is valid
// and tells the provider there is no further instruction.
func (t *TwiML) Render() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(t.resp); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
