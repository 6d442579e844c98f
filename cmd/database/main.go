package main

import (
	"context"
	"io"
	"log"
	"os"

	"tricount/database"
	"tricount/database/mongodb"
	"tricount/server"
	"tricount/util"
)

func main() {
	logFile, err := os.OpenFile("bagel.log", os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		log.Fatal(err)
	}
	defer logFile.Close()
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	log.SetPrefix("Database" + ": ")

	if len(os.Args) != 4 {
		log.Printf("Usage: ./bin/database [$1 sql|dynamodb|mongodb] [$2 TABLE_NAME] [$3<PATH_TO_GRAPH.txt>]")
		return
	}
	source, tableName, graphPath := os.Args[1], os.Args[2], os.Args[3]

	config, err := util.ReadCoordConfig("config/coord_config.json", ".env")
	util.CheckErr(err, "Error reading coord config: %v\n", err)

	graph, err := database.ReadInputGraph(graphPath)
	util.CheckErr(err, "Error reading graph %v: %v\n", graphPath, err)

	ctx := context.Background()
	switch source {
	case server.SOURCE_SQL:
		store, err := database.OpenSQLStore(config.Graph.Driver, config.Graph.DSN, tableName)
		util.CheckErr(err, "Error opening %v database: %v\n", config.Graph.Driver, err)
		defer store.Close()
		err = store.CreateAdjList(ctx)
		util.CheckErr(err, "Error creating table %v: %v\n", tableName, err)
		err = store.AddGraph(ctx, graph)
		util.CheckErr(err, "Error adding graph: %v\n", err)

	case server.SOURCE_DYNAMODB:
		svc, err := database.GetDynamoClient(ctx, config.Graph.Region)
		util.CheckErr(err, "Error creating dynamodb client: %v\n", err)
		store := database.NewDynamoStore(svc, tableName)
		err = store.CreateTable(ctx)
		util.CheckErr(err, "Error creating table %v: %v\n", tableName, err)
		err = store.AddGraph(ctx, graph)
		util.CheckErr(err, "Error adding graph: %v\n", err)

	case server.SOURCE_MONGODB:
		client, err := mongodb.GetDatabaseClient(ctx, config.Graph.DSN)
		util.CheckErr(err, "Error connecting to mongodb: %v\n", err)
		store := mongodb.NewStore(client, tableName)
		defer store.Close(ctx)
		err = store.AddGraph(ctx, graph)
		util.CheckErr(err, "Error adding graph: %v\n", err)
		// tag the partition the coord will ask for
		_, err = store.GetPartitionForWorkerX(ctx, int(config.NumWorkers), 0)
		util.CheckErr(err, "Error partitioning graph: %v\n", err)

	default:
		log.Printf("Unknown store %q, expected sql, dynamodb or mongodb\n", source)
		return
	}
	log.Printf("main: loaded %v vertices into %v table %v\n", len(graph), source, tableName)
}
