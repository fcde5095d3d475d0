// Package catalog provides the HTTP client for the comic catalog API used
// to search issues and volumes and to resolve cover artwork.
package catalog
