package main

import (
	"context"
	"flag"
	"log"
	"os"

	"tricount/bagel"
	"tricount/database"
	"tricount/triangles"
	"tricount/util"
)

func main() {
	numWorkers := flag.Uint("workers", 2, "number of workers")
	strict := flag.Bool("strict", false, "fail when a tally is odd")
	verbose := flag.Bool("v", false, "log every superstep")
	flag.Parse()
	log.SetPrefix("tricount: ")

	if flag.NArg() != 1 {
		log.Printf("Usage: ./bin/tricount [-workers n] [-strict] [-v] <PATH_TO_GRAPH.txt>")
		os.Exit(2)
	}

	graph, err := database.ReadInputGraph(flag.Arg(0))
	util.CheckErr(err, "Error reading graph: %v\n", err)

	config := bagel.JobConfig{
		NumWorkers:    uint32(*numWorkers),
		MaxSuperSteps: 100,
		Verbose:       *verbose,
	}
	if *verbose {
		config.OnSuperStep = func(p bagel.Progress) {
			log.Printf("superstep %v: %v active, %v messages\n", p.SuperStepNum, p.ActiveVertices, p.MessagesSent)
		}
	}

	result, err := triangles.Count(context.Background(), config, *strict,
		database.BagelVertices(database.GraphToVertices(graph)))
	util.CheckErr(err, "Error counting triangles: %v\n", err)

	log.Printf("%v triangles in %v supersteps\n", result.Total, result.SuperSteps)
}
