// ABOUTME: Single-turn execution: request, stream decoding and playback wait
// ABOUTME: Maps transport, protocol and cancellation outcomes onto results
package chatterbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/harperreed/chatterbox-go/pkg/audio"
	"github.com/harperreed/chatterbox-go/pkg/chat"
	"github.com/harperreed/chatterbox-go/pkg/demux"
	"github.com/harperreed/chatterbox-go/pkg/playback"
	"github.com/harperreed/chatterbox-go/pkg/transport"
)

// progress tracks what one turn has decoded so far
type progress struct {
	start    time.Time
	result   TurnResult
	lastUser string
	sched    *playback.Scheduler

	// recorded is set once the reply is in the history
	recorded bool
}

func (c *Conversation) run(ctx context.Context, t *turn, input []byte) (TurnResult, error) {
	p := &progress{start: time.Now(), result: TurnResult{ID: t.id}}
	c.recorder.TurnStarted()
	c.demuxer.Reset()

	var playbackErrors atomic.Int64
	p.sched = playback.NewScheduler(c.config.Sink, playback.Config{
		PollInterval: c.config.PollInterval,
		Debug:        c.config.Debug,
		OnStart: func(seg *audio.Segment) {
			c.setState(StateSpeaking)
			if c.config.OnPlaybackStart != nil {
				c.config.OnPlaybackStart(seg)
			}
		},
		OnFinished: func(seg *audio.Segment) {
			c.recorder.SegmentPlayed()
		},
		OnError: func(err error) {
			playbackErrors.Add(1)
			c.recorder.SegmentFailed()
			if c.config.OnPlaybackError != nil {
				c.config.OnPlaybackError(err)
			}
		},
		OnComplete: func() {
			if c.config.OnPlaybackComplete != nil {
				c.config.OnPlaybackComplete()
			}
		},
	})
	go p.sched.Run()
	defer p.sched.Stop()

	finish := func(outcome string, err error) (TurnResult, error) {
		p.result.Outcome = outcome
		p.result.PlaybackErrors = int(playbackErrors.Load())
		p.result.Duration = time.Since(p.start)
		c.recorder.TurnFinished(outcome, p.result.Duration)
		if c.config.Debug {
			log.Printf("[debug] turn %s finished: %s in %v", t.id, outcome, p.result.Duration)
		}
		return p.result, err
	}

	body, err := c.request(ctx, input)
	if err != nil {
		err = fmt.Errorf("failed to build request: %w", err)
		c.notifyError(err)
		return finish(OutcomeFailed, err)
	}

	c.setState(StateSending)
	src, err := c.config.Opener.Open(ctx, body)
	if err != nil {
		if ctx.Err() != nil {
			return finish(OutcomeCancelled, ErrTurnCancelled)
		}
		c.notifyError(err)
		return finish(outcomeOf(err), err)
	}
	t.setSource(src)
	defer src.Close()

	streamErr := c.stream(ctx, src, p)
	done, endErr := c.demuxer.End()
	p.result.AssistantMessage = done.Text

	if ctx.Err() != nil {
		return c.cancelled(p, finish)
	}

	turnErr := streamErr
	if turnErr == nil {
		turnErr = endErr
	}

	// Partial text is kept; a failed turn with nothing decoded adds nothing
	if turnErr == nil || done.Text != "" {
		c.appendHistory(ctx, chat.Message{Role: chat.RoleAssistant, Content: done.Text, Name: c.config.Name})
		p.recorded = true
	}
	c.recorder.EventDecoded(demux.EventTurnComplete.String())
	if c.config.OnAssistantMessage != nil {
		c.config.OnAssistantMessage(done.Text)
	}

	if turnErr != nil {
		src.Close()
		log.Printf("Turn %s aborted: %v", t.id, turnErr)
		c.notifyError(turnErr)
	}

	// Audio decoded before an abort still plays
	p.sched.NotifyStreamComplete()

	select {
	case <-p.sched.Done():
	case <-ctx.Done():
		return c.cancelled(p, finish)
	}

	if turnErr != nil {
		return finish(outcomeOf(turnErr), turnErr)
	}
	return finish(OutcomeComplete, nil)
}

// stream reads the source to the end, feeding every buffer through the demuxer
func (c *Conversation) stream(ctx context.Context, src transport.Source, p *progress) error {
	for {
		buf, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		c.recorder.BytesReceived(len(buf))

		// Feed stops early when its budget runs out; the rest goes next
		for len(buf) > 0 {
			events, n, err := c.demuxer.Feed(buf)
			c.dispatch(ctx, events, p)
			if err != nil {
				return err
			}
			buf = buf[n:]
		}
	}
}

func (c *Conversation) dispatch(ctx context.Context, events []demux.Event, p *progress) {
	for _, ev := range events {
		c.recorder.EventDecoded(ev.Kind.String())
		if c.State() == StateSending {
			c.setState(StateResponding)
		}

		switch ev.Kind {
		case demux.EventUserMessage:
			if c.config.Debug {
				log.Printf("[debug] query text: %q", ev.Text)
			}
			p.result.UserMessage = ev.Text
			if ev.Text != "" && ev.Text != p.lastUser {
				p.lastUser = ev.Text
				c.appendHistory(ctx, chat.Message{Role: chat.RoleUser, Content: ev.Text, Name: c.config.SenderName})
			}
			if c.config.OnUserMessage != nil {
				c.config.OnUserMessage(ev.Text)
			}

		case demux.EventAssistantTextDelta:
			if c.config.OnAssistantDelta != nil {
				c.config.OnAssistantDelta(ev.Text)
			}

		case demux.EventAudioSegmentReady:
			if c.config.OnAudioSegment != nil {
				c.config.OnAudioSegment(ev.Segment)
			}
			// An empty audio field carries nothing to play
			if len(ev.Segment.Data) == 0 {
				ev.Segment.Release()
				continue
			}
			p.result.Segments++
			if p.result.Segments == 1 {
				c.recorder.FirstAudio(time.Since(p.start))
			}
			if err := p.sched.Enqueue(ev.Segment); err != nil {
				log.Printf("Dropped audio segment %s: %v", ev.Segment.ID, err)
			}
		}
	}
}

// cancelled retires a turn aborted by its context: the queue is cleared,
// the decoder reset and the partial reply kept in the history
func (c *Conversation) cancelled(p *progress, finish func(string, error) (TurnResult, error)) (TurnResult, error) {
	dropped := p.sched.Clear()
	c.demuxer.Reset()

	if c.config.Debug {
		log.Printf("[debug] turn %s cancelled, %d segments dropped", p.result.ID, dropped)
	}

	if p.result.AssistantMessage != "" && !p.recorded {
		// The turn context is already done
		c.appendHistory(context.Background(), chat.Message{
			Role:    chat.RoleAssistant,
			Content: p.result.AssistantMessage,
			Name:    c.config.Name,
		})
	}

	return finish(OutcomeCancelled, ErrTurnCancelled)
}

func (c *Conversation) appendHistory(ctx context.Context, msg chat.Message) {
	if err := c.config.History.Append(ctx, msg); err != nil {
		log.Printf("Failed to update history: %v", err)
		c.notifyError(err)
	}
}

func outcomeOf(err error) string {
	var perr *demux.ProtocolError
	var terr *transport.Error
	switch {
	case errors.As(err, &perr):
		return OutcomeProtocol
	case errors.As(err, &terr):
		return OutcomeTransport
	default:
		return OutcomeFailed
	}
}
