// Package triangles counts the triangles of an undirected graph with a
// four-superstep vertex program.
//
// Every vertex announces its id to its neighbors, relays everything it
// heard to all of its neighbors, and then answers every two-hop id that is
// also a direct neighbor. Each answer closes a triangle from one end of its
// closing edge, so a vertex receives two answers per triangle it belongs
// to and halves the count in the tally superstep, leaving the number of
// triangles it belongs to. The AggregatorName aggregator sums those
// values, which counts every triangle once at each of its three vertices;
// TotalOf divides the sum by three.
package triangles
