// Package voxdoc turns spoken instructions into surgical edits of a live HTML
// document. It connects a microphone to a bidirectional multimodal endpoint,
// streams voice-gated PCM upstream, plays the model's audio replies gaplessly,
// and applies the model's update_element / append_element tool calls as atomic
// patches against the current document.
//
// # Overview
//
// The package covers:
//   - Real-time voice capture with RMS voice-activity gating
//   - Gapless scheduled playback of streamed 24 kHz PCM with barge-in
//   - Exactly-once tool-call dispatch with batched acknowledgments
//   - CSS-selector addressed document patching with atomic commits
//   - One-shot HTML article generation with bounded retry
//   - Project and transcript persistence over Redis with memory fallback
//   - Structured logging with Zerolog
//
// # Quick Start
//
// Basic usage example:
//
//	config := voxdoc.NewVoxdocConfig()
//	client := voxdoc.NewVoxdocClient(config)
//
//	client.OnTranscription(voxdoc.CreateTranscriptPrinter(os.Stdout))
//	client.OnError(voxdoc.CreateErrorLoggingHandler("main"))
//
//	if err := client.ConnectLive(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//	defer client.StopLive()
//
// The client owns the document. Tool calls arriving over the live session are
// validated against the current tree and committed through one atomic
// read-modify-write path, so a manual edit and an in-flight patch can never
// silently overwrite each other:
//
//	client.NotifyManualEdit(editedHTML) // commits and re-syncs the model
//
// # Configuration
//
// Configuration loads from the environment (VOXDOC_* variables, .env
// supported) with sensible defaults:
//
//	config := voxdoc.NewVoxdocConfig()
//	config.Voice = "Kore"
//	config.ReportToolFailures = true
//	if issues := config.Validate(); len(issues) > 0 {
//		log.Fatal(issues)
//	}
//
// # Document Patching
//
// Patches can also be applied directly, outside a live session:
//
//	rec := client.Reconciler()
//	result := rec.Apply(voxdoc.PatchRequest{
//		Selector: "h1",
//		HTML:     "Hello",
//		Mode:     voxdoc.PatchReplaceContent,
//	})
//
// A selector that matches nothing fails without touching the document; the
// session still acknowledges the originating tool call so the remote turn
// never stalls.
package voxdoc
