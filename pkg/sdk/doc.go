// Package discovery embeds the food discovery engine in a Go program.
//
// The client answers the same requests as POST /api/search: free text,
// positive and negative examples, an optional radius around a point, or
// nothing at all for a random diverse selection.
//
//	client, _ := discovery.New(ctx,
//	    discovery.WithQdrant("localhost", 6334, ""),
//	    discovery.WithCollection("food"),
//	    discovery.WithEmbedder(myEmbedder),
//	)
//	defer client.Close()
//
//	res, _ := client.Discover(ctx, discovery.Request{
//	    Text: "spicy noodles",
//	    Near: &discovery.Location{Latitude: 52.52, Longitude: 13.40, RadiusKm: 3},
//	})
//	for _, item := range res.Items {
//	    fmt.Println(item.Name, item.Restaurant.Name)
//	}
//
// Without an index option the client serves an in-memory catalog built from
// WithRecords or WithFixture, which is handy for tests and demos.
package discovery
