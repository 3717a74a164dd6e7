// Package asr turns extracted audio into timed text segments.
//
// Two engines ship: WhisperX run through uvx, which writes a JSON result that
// is parsed and discarded, and any OpenAI-compatible /audio/transcriptions
// endpoint queried for verbose_json. Limiter caps concurrent transcriptions so
// a single shared engine is never oversubscribed.
package asr
