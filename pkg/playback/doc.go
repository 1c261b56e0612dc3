// ABOUTME: Ordered playback of response audio segments
// ABOUTME: FIFO scheduler driving an external audio sink one segment at a time
// Package playback sequences decoded audio segments through an audio sink.
//
// Segments play in the order they were enqueued, never two at once. The
// scheduler advances when the sink reports a segment finished, and polls
// at a fixed interval while it waits for the producer. PlaybackComplete
// fires once the queue is empty and the stream has been marked complete.
//
// Example:
//
//	sched := playback.NewScheduler(sink, playback.Config{
//		OnComplete: func() { log.Printf("done speaking") },
//	})
//	go sched.Run()
//	sched.Enqueue(seg)
//	sched.NotifyStreamComplete()
//	<-sched.Done()
package playback
