// Package httpclient is an outbound HTTP client for JSON APIs and scraping.
//
// Single requests (Get, Post, Put, Patch, Delete) decode the JSON response
// body; Text and Blob return the raw body. Every request carries the client's
// default headers, which per-call headers override key by key.
//
// Fetch, Scrape and Batch issue one GET per URL concurrently and return
// results in input order. A failed request only marks its own slot:
//
//	results := client.Fetch(ctx, urls, nil)
//	for i, r := range results {
//	    if r.Err != nil {
//	        log.Printf("%s failed: %v", urls[i], r.Err)
//	    }
//	}
//	if err := httpclient.BatchErr(results); err != nil {
//	    // errors.Is(err, riders.ErrPartialBatch)
//	}
package httpclient
