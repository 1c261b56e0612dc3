// ABOUTME: High-level voice conversation API
// ABOUTME: Runs request, demux and playback for each turn with push-style callbacks
// Package chatterbox runs voice chat turns against a voice endpoint.
//
// A Conversation sends the recorded query with the adapted chat history,
// decodes the streamed response as it arrives and plays the assistant's
// audio segments in order. Hosts observe the turn through callbacks.
//
// Example:
//
//	conv, err := chatterbox.New(chatterbox.Config{
//		Opener: transport.NewHTTP("http://localhost:8000/voice", nil),
//		Sink:   sink,
//		OnAssistantDelta: func(text string) {
//			fmt.Print(text)
//		},
//	})
//	result, err := conv.Send(ctx, recording)
package chatterbox
