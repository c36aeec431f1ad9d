// Package thumbnail captures a representative frame from a video and encodes
// it as an inline JPEG data URI.
//
// A Generator drives a Decoder through a short race of signals: metadata
// (duration and native size), a captured frame, or failure of either. The
// frame is taken at 25% of the duration, or at 1s when the duration is not
// known in time; a failed seek falls back to the first frame. A hard timeout
// bounds the whole run.
//
// Generate never returns an error. An empty Result.Data means no usable
// thumbnail could be produced.
//
// The default Decoder shells out to FFmpeg and ffprobe, which must be
// installed and available in the system PATH.
package thumbnail
