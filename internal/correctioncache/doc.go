// Package correctioncache persists user-confirmed matches keyed by
// normalized OCR text so repeat scans of the same cover skip the vision
// call entirely.
package correctioncache
