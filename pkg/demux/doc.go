// ABOUTME: Incremental demultiplexer for the chatterbox wire format
// ABOUTME: Turns delivered byte buffers into conversation turn events
// Package demux reassembles a conversation turn from an incrementally
// delivered response body.
//
// Buffers may split fields anywhere, or carry several fields at once;
// the Demuxer keeps the current phase and the partially received field
// ("carry") between calls and emits an event as soon as a field is
// complete.
//
// Example:
//
//	d, err := demux.New(demux.Config{Store: audio.NewMemoryStore()})
//	for {
//	    buf, err := src.Read(ctx)
//	    if err == io.EOF {
//	        done, err := d.End()
//	        ...
//	    }
//	    for len(buf) > 0 {
//	        events, n, err := d.Feed(buf)
//	        ...
//	        buf = buf[n:]
//	    }
//	}
package demux
