// Package mediatypes knows which files the gallery publishes.
//
// Photos are JPEG or PNG files named after their numeric id ("123.jpg").
// The helpers here classify file names, map them to MIME types and turn
// bare ids into candidate file names:
//
//	mediatypes.IsPhoto("12.JPG")        // true
//	mediatypes.GetMimeType("12.png")    // "image/png"
//	mediatypes.TrimPhotoExt("12.jpeg")  // "12"
package mediatypes
