// Package ffmpeg wraps the external ffmpeg/ffprobe binaries for lossless
// chapter concatenation. It writes a concat-demuxer manifest, streams the
// subprocess diagnostics, and surfaces the elapsed-media-time markers found
// there as a monotonic progress signal. The rest of the pipeline depends
// only on that abstract signal, never on ffmpeg's output format.
package ffmpeg
