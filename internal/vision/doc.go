// Package vision talks to the multimodal model that scores a photographed
// cover against catalog candidates (comparison mode) or names the comic
// outright (identification mode).
package vision
