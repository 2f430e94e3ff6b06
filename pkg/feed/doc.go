// Package feed drains continuation-token paginated feeds into memory.
//
// A feed is any listing the document service returns one page at a time:
// databases, collections, documents, attachments or query results. Each page
// carries an opaque continuation token; the next request echoes it back and
// the feed ends when the service stops issuing one.
//
// Example usage:
//
//	dbs, err := feed.GetItems(ctx, client.DatabaseFeed())
//
// The pager:
//   - Sends the first request without a token
//   - Threads every returned token into the next request, unmodified
//   - Stops when the returned token is empty
//   - Checks ctx before every fetch
//   - Returns nothing but the error when any fetch fails
package feed
