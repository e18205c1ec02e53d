// Package crawler runs one crawl: it acquires a browser session, drives every
// source adapter for every keyword over that session, and deduplicates the
// combined results.
package crawler
