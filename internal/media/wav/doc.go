// Package wav verifies the PCM track written by audio extraction before it is
// handed to a speech engine.
package wav
