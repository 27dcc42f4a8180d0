// Package engine defines the external collaborators the queue invokes to
// do the actual domain work: speech-to-text transcription, text risk
// classification, and the fire-and-forget completion webhook. The queue
// only sees the interfaces; every implementation here talks to a process
// outside this one.
package engine
