// Package types defines the Go types shared between interrupt-meter and the
// jobs that push tracker data into it. RawStory is the unnormalised story
// entry as exported by the tracker, before the server parses it.
package types
