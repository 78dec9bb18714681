// Package brunt provides a Go client for the Brunt cloud API, which controls
// Brunt Blind Engine motorized blinds.
//
// The vendor exposes two hosts: an account host serving login and the
// device list, and a things host serving per-thing reads and writes. The
// client hides this split, logs in lazily and re-authenticates whenever the
// session cookie expires.
//
// # Basic Usage
//
//	client, err := brunt.NewClient(brunt.WithCredentials("user@example.com", "secret"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// List the blinds on the account:
//
//	things, err := client.Things(ctx, false)
//	for _, t := range things {
//	    fmt.Printf("%s (%s)\n", t.Name, t.URI)
//	}
//
// Read the state of a blind, selected by name or by URI:
//
//	thing, err := client.GetState(ctx, brunt.ByName("Living Room"))
//	pos, ok := thing.Position()
//
// Move a blind to half open:
//
//	err := client.ChangeRequestPosition(ctx, 50, brunt.ByURI("/hub/00140d6f1950f166"))
//
// Position then reports 50 for that blind until a newer read arrives:
//
//	pos, ok := client.Position("/hub/00140d6f1950f166")
//
// # Asynchronous Usage
//
// AsyncClient runs the same operations on a single background worker and
// returns a Future per call:
//
//	ac, _ := brunt.NewAsyncClient(brunt.WithCredentials(user, pass))
//	defer ac.Close()
//	f := ac.GetState(ctx, brunt.ByName("Bedroom"))
//	thing, err := f.Await(ctx)
//
// # Batch Operations
//
// ChangeRequestPositionBatch and GetStateBatch run several selectors with
// bounded concurrency and return one BatchResult per selector:
//
//	results := client.ChangeRequestPositionBatch(ctx, 0, sels, &brunt.BatchConfig{MaxConcurrent: 2})
//
// # Error Handling
//
// Validation failures are reported before any request is sent:
//
//	if errors.Is(err, brunt.ErrInvalidPosition) {
//	    // position outside 0-100
//	}
//
// Failed requests and non-2xx responses wrap ErrTransport, responses of an
// unexpected shape wrap ErrProtocol:
//
//	if brunt.IsUnauthorized(err) {
//	    // wrong credentials
//	}
//
// # Sessions
//
// A FileSessionStore keeps the session cookie across runs:
//
//	client, _ := brunt.NewClient(
//	    brunt.WithCredentials(user, pass),
//	    brunt.WithSessionStore(brunt.NewFileSessionStore(path)),
//	)
package brunt
