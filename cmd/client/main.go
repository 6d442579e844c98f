package main

import (
	"context"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"tricount/bagel"
	"tricount/database"
	"tricount/util"
)

func main() {
	// read config
	var config util.ClientConfig
	err := util.ReadJSONConfig("config/client_config.json", &config)
	util.CheckErr(err, "Error reading client config: %v\n", err)

	// create a log file and log to both console and terminal
	logFile, err := os.OpenFile(
		"bagel.log", os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644,
	)
	if err != nil {
		log.Fatal(err)
	}
	defer logFile.Close()
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	// logs all start with ClientId from config
	log.SetPrefix(config.ClientId + ": ")

	log.Printf("Client: main.go: args: %v\n", os.Args)

	invalidInput := false
	var query bagel.Query

	if len(os.Args) < 3 || len(os.Args) > 4 {
		invalidInput = true
	} else if strings.EqualFold(os.Args[1], bagel.TRIANGLE_COUNT) {
		query.QueryType = bagel.TRIANGLE_COUNT
		if len(os.Args) == 4 && os.Args[2] == "-f" {
			// send the edges of a local file instead of naming a stored graph
			graph, err := database.ReadInputGraph(os.Args[3])
			if err != nil {
				log.Printf("Provided edge list could not be read: %v\n", err)
				invalidInput = true
			} else {
				query.Edges = edgesOf(graph)
			}
		} else if len(os.Args) == 3 {
			query.Graph = os.Args[2]
		} else {
			invalidInput = true
		}
	} else {
		invalidInput = true
	}

	if invalidInput {
		log.Println("Usage: ./bin/client trianglecount [graphName | -f edgeList.txt]")
		log.Println("Example: ./bin/client trianglecount facebook_combined")
		log.Println("Example: ./bin/client trianglecount -f graph.txt")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client := bagel.NewClient()
	notifyCh, err := client.Start(ctx, config.ClientId, config.CoordAddr)
	util.CheckErr(err, "Error connecting to coord: %v\n", err)
	defer client.Stop()

	err = client.SendQuery(ctx, query)
	util.CheckErr(err, "Error sending query: %v\n", err)
	log.Printf("Client sent %v on graph %q with %v edges\n", query.QueryType, query.Graph, len(query.Edges))

	result := <-notifyCh
	if result.Error != "" {
		log.Printf("Client: SendQuery error: %v\n", result.Error)
		return
	}
	log.Printf("Client: SendQuery received result: %v triangles in %v supersteps\n",
		result.Total, result.SuperSteps)
}

// edgesOf lists every undirected edge of graph once.
func edgesOf(graph database.Graph) [][2]uint64 {
	var edges [][2]uint64
	for src, neighbors := range graph {
		for _, dest := range neighbors {
			if src <= dest {
				edges = append(edges, [2]uint64{src, dest})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}
