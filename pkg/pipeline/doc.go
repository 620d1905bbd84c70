// Package pipeline turns one spoken request into a persona's spoken answer.
//
// Two paths are available. The parallel path streams: audio is transcribed in
// windows while it arrives, speculative partial answers start as soon as enough
// words are known, the authoritative answer streams once transcription ends, and
// answer text is cut into utterances that are synthesized one at a time. Every
// step is reported to the caller as a Record.
//
// The traditional path is sequential: transcribe the whole buffer, ask for the
// whole answer, optionally synthesize it, and return one TraditionalResult.
//
// # Stages
//
//	chunks ──► Transcriber ──► transcripts ──► Completer ──► fragments ──► Segmenter ──► records
//	                                                                           │
//	                                                                           └─► dispatcher (TTS, FIFO)
//
// Stages are joined by bounded channels and share one errgroup context. A
// failed transcription window or synthesis call is logged and dropped. A
// failed authoritative answer ends the attempt.
//
// # Fallback
//
// If the parallel attempt fails before its first record, the session history is
// rolled back and the traditional path answers instead. Once a record has been
// handed to the caller there is no fallback: the stream ends with an ERROR record.
//
// # Usage
//
//	orch := pipeline.NewOrchestrator(pipeline.DefaultConfig(), sttProvider, chatService, ttsProvider)
//	out, err := orch.Voice(ctx, &pipeline.VoiceRequest{
//	    Mode:     pipeline.ModeParallel,
//	    Session:  sess,
//	    Audio:    upload,
//	    Filename: "audio.webm",
//	})
//	if err != nil {
//	    return err
//	}
//	if out.Stream != nil {
//	    for rec := range out.Stream {
//	        line, _ := rec.Line()
//	        w.Write(line)
//	    }
//	}
package pipeline
