// Package crawler implements a bounded, depth-limited web crawler.
//
// # Architecture
//
// A Crawler owns two worker pools. The download pool runs fetches and the
// extraction pool turns fetched pages into new addresses. Fetches are
// admitted per origin by HostAdmission, so no host ever sees more than the
// configured number of concurrent requests while other hosts keep the
// download pool busy.
//
// Each Crawl call has its own visited set, result collector and pending
// work counter. Every unit of work registers with the counter before it is
// handed off and arrives exactly once when it ends, so the counter reaches
// zero only when nothing is left to run and Crawl can return.
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(client)
//	c, err := crawler.New(fetcher, 16, 8, 4)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	result, err := c.Crawl(ctx, "https://example.com/", 2)
//
// # Failures
//
// A page that cannot be fetched is recorded in Result.Errors with its
// cause and the crawl continues. Link extraction failures are logged and
// leave the page in Result.Downloaded.
package crawler
