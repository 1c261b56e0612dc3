// ABOUTME: Response backends for the reference voice server
// ABOUTME: A backend turns one request into rounds of text and audio
package server

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/chat"
)

// Round is one query/text/audio cycle of a response stream
type Round struct {
	Query string
	Text  string
	Audio []byte
}

// Backend produces the rounds answering a request. emit writes a round
// to the client; an error from emit ends the response.
type Backend interface {
	Respond(ctx context.Context, req *chat.Request, emit func(Round) error) error
}

// A sentence ends at terminal punctuation followed by whitespace, so
// "3.5" or a trailing "." still waiting for more text stays open
var sentenceEnd = regexp.MustCompile(`[.!?]+\s`)

// sentenceSplitter collects streamed text and yields complete sentences
type sentenceSplitter struct {
	buf strings.Builder
}

// Add appends a chunk and returns the sentences it completed
func (s *sentenceSplitter) Add(chunk string) []string {
	s.buf.WriteString(chunk)
	text := s.buf.String()

	var sentences []string
	for {
		loc := sentenceEnd.FindStringIndex(text)
		if loc == nil {
			break
		}
		if sentence := strings.TrimSpace(text[:loc[1]]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		text = text[loc[1]:]
	}

	s.buf.Reset()
	s.buf.WriteString(text)
	return sentences
}

// Flush returns any trailing text
func (s *sentenceSplitter) Flush() string {
	rest := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return rest
}

// SplitSentences splits a complete text into sentences
func SplitSentences(text string) []string {
	var s sentenceSplitter
	sentences := s.Add(text)
	if rest := s.Flush(); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// describeInput returns the text a backend answers: a placeholder for
// recorded audio it can't transcribe, or the last typed user message
func describeInput(req *chat.Request) (string, error) {
	data, err := req.Audio()
	if err != nil {
		return "", fmt.Errorf("invalid input audio: %w", err)
	}
	if len(data) > 0 {
		codec := audio.SniffCodec(data)
		if codec == audio.CodecUnknown {
			codec = "unknown"
		}
		return fmt.Sprintf("[%s audio, %d bytes]", codec, len(data)), nil
	}
	if msg, ok := req.LastUserMessage(); ok {
		return msg.Content, nil
	}
	return "", nil
}

// sentenceRound builds the round for one sentence; the first carries the query
func sentenceRound(query, sentence string, index int, data []byte) Round {
	if index == 0 {
		return Round{Query: query, Text: sentence, Audio: data}
	}
	return Round{Text: " " + sentence, Audio: data}
}
