// Package gopro parses camera chapter filenames and reconstructs recording
// sequences from them. The camera splits one recording into fixed-size
// chapter files named G<encoding><chapter><sequence>.<ext>; this package
// recognizes that grammar and groups uploaded files back into ordered
// sequences ready for concatenation.
package gopro
